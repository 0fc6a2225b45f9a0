package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/registrar/internal/cmd/output"
	"github.com/agentstation/registrar/pkg/constants"
	"github.com/agentstation/registrar/pkg/errors"
	"github.com/agentstation/registrar/pkg/logging"
	"github.com/agentstation/registrar/pkg/reconciler"
	"github.com/agentstation/registrar/pkg/report"
)

// Input is the parsed positional arguments of a registration.
type Input struct {
	Project  string
	URL      string
	BuildID  string
	Roles    string
	Approved bool
}

// ParseArgs maps positional arguments onto an Input. The role list defaults
// to constants.DefaultRole and only the literal "true" approves the report.
func ParseArgs(args []string) (Input, error) {
	if len(args) < 3 || len(args) > 5 {
		return Input{}, errors.NewValidationError("args", len(args), "expected <projectName> <indexFileURL> <buildID> [roleIds] [approved]")
	}

	in := Input{
		Project: args[0],
		URL:     args[1],
		BuildID: args[2],
		Roles:   constants.DefaultRole,
	}
	if len(args) > 3 && strings.TrimSpace(args[3]) != "" {
		in.Roles = args[3]
	}
	if len(args) > 4 {
		in.Approved = args[4] == "true"
	}
	return in, nil
}

// Descriptor builds the desired report state for the input.
func (in Input) Descriptor(createdBy string) report.Descriptor {
	return report.New(in.Project, in.URL, in.Roles, in.Approved, report.WithCreatedBy(createdBy))
}

// runRegister reconciles one report and prints the result.
func (a *App) runRegister(cmd *cobra.Command, args []string) error {
	in, err := ParseArgs(args)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(a.config.Format)
	if err != nil {
		return errors.NewValidationError("format", a.config.Format, err.Error())
	}
	if format == "" {
		format = output.DetectFormat("")
	}

	c, err := a.Catalog()
	if err != nil {
		return err
	}

	r, err := reconciler.New(c, reconciler.WithDryRun(a.config.DryRun))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), constants.CommandTimeout)
	defer cancel()
	ctx = logging.WithLogger(ctx, a.logger)

	desc := in.Descriptor(a.config.CreatedBy)
	a.logger.Debug().
		Str("name", desc.Name()).
		Str("url", desc.URL()).
		Str("status", desc.Status().String()).
		Str("roles", desc.Roles().String()).
		Bool("dry_run", a.config.DryRun).
		Msg("Registering report")

	result, runErr := r.Run(ctx, desc, in.BuildID)

	if err := output.FormatResult(cmd.OutOrStdout(), result, format); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to write result")
	}

	if runErr != nil {
		return runErr
	}
	if !result.IsSuccess() {
		return failureError(result)
	}
	return nil
}

// failureError explains a failed run that had no fatal error.
func failureError(result *reconciler.Result) error {
	if failed := result.FailedRoles(); len(failed) > 0 {
		return errors.NewResourceError("grant", "roles", strings.Join(failed, ","),
			fmt.Errorf("%d of %d role grants failed", len(failed), len(result.RoleGrants)))
	}
	return errors.NewResourceError("register", "report", result.Name, errors.New(result.Error))
}
