package transport

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/agentstation/registrar/pkg/errors"
	"github.com/agentstation/registrar/pkg/logging"
)

// IsSuccess reports whether a status code counts as success for the catalog (< 300).
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// DecodeResponse reads and closes the body. A non-2xx status yields an
// *errors.APIError carrying the body text; otherwise the body is decoded into
// target when target is non-nil and the body is not empty.
func DecodeResponse(resp *http.Response, target any) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if !IsSuccess(resp.StatusCode) {
		apiErr := &errors.APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
		if resp.Request != nil {
			apiErr.Method = resp.Request.Method
			apiErr.Endpoint = resp.Request.URL.Path
		}
		return apiErr
	}

	if target == nil || len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}

	return nil
}
