// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/marcelocantos/jtmake"
)

// shellMethods is the built-in method registry available to a YAML rule
// graph loaded from the command line: a rule graph cannot embed Go
// closures, so "shell" is the one method every jtmake.yaml can reference,
// running its "cmd" kwarg through the shell. Grounded on the teacher's
// executeRecipe (exec.go), which ran each recipe line the same way.
func shellMethods(ctx context.Context) map[string]jtmake.Method {
	return map[string]jtmake.Method{
		"shell": func(r *jtmake.Rule) error {
			cmdStr, _ := r.Kwarg("cmd").(string)
			if cmdStr == "" {
				return fmt.Errorf("rule %q: method \"shell\" requires a string \"cmd\" kwarg", r.Name)
			}
			cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			cmd.Stdin = os.Stdin
			return cmd.Run()
		},
	}
}
