// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procmgr

import (
	"fmt"
	"strings"
	"text/template"
)

// shellCommandParams is the substitution available to shell_command
// tokens. {{.Command}} is the placeholder users write in config
// (spec.md §6 shell_command), analogous to the reference
// implementation's `{{ pueue_command_string }}`.
type shellCommandParams struct {
	Command string
}

// compileShellCommand renders each token of shellCommand as a
// text/template against the task's command string, producing the argv
// to exec. There is no third-party templating library anywhere in the
// example corpus, so this single substitution is done with the
// standard library rather than pulling one in for one placeholder.
func compileShellCommand(shellCommand []string, command string) ([]string, error) {
	if len(shellCommand) == 0 {
		return nil, fmt.Errorf("shell_command is empty")
	}

	params := shellCommandParams{Command: command}
	argv := make([]string, len(shellCommand))
	for i, part := range shellCommand {
		tmpl, err := template.New("shell_command").Parse(part)
		if err != nil {
			return nil, fmt.Errorf("parsing shell_command token %q: %w", part, err)
		}
		var out strings.Builder
		if err := tmpl.Execute(&out, params); err != nil {
			return nil, fmt.Errorf("rendering shell_command token %q: %w", part, err)
		}
		argv[i] = out.String()
	}
	return argv, nil
}
