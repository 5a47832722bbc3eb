// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package ollama

import (
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// startupWait bounds how long a launched server may take to answer.
const startupWait = 10 * time.Second

var executableNames = []string{"ollama"}

// installCandidates lists common Linux and macOS install paths.
func installCandidates() []string {
	paths := []string{
		"/usr/local/bin/ollama",
		"/usr/bin/ollama",
		"/opt/ollama/ollama",
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths,
			filepath.Join(home, ".local", "bin", "ollama"),
			filepath.Join(home, "bin", "ollama"),
		)
	}
	return append(paths, "/Applications/Ollama.app/Contents/Resources/ollama")
}

// detach puts the child in its own process group so terminal signals aimed
// at us do not reach it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
