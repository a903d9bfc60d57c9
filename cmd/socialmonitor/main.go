// Command socialmonitor collects social media statistics for the monitored
// embassy and consulate accounts and turns them into monthly reports.
package main

import (
	"errors"
	"log/slog"
	"os"

	apperrors "github.com/JuliaLoth/NLWW-socialmediamonitor/internal/errors"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		attrs := []any{"error", err}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			attrs = append(attrs, "code", appErr.Code)
			if appErr.Field != "" {
				attrs = append(attrs, "field", appErr.Field)
			}
		}
		slog.Error("command failed", attrs...)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command failure to the shell.
	}
}
