// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package ollama

import (
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// Process creation flags not exported by syscall.
const (
	createNoWindow  = 0x08000000
	detachedProcess = 0x00000008
)

// First launch on Windows is slow.
const startupWait = 15 * time.Second

var executableNames = []string{"ollama.exe", "ollama"}

// installCandidates lists the user and system install paths.
func installCandidates() []string {
	var paths []string
	if local := os.Getenv("LOCALAPPDATA"); local != "" {
		paths = append(paths, filepath.Join(local, "Programs", "Ollama", "ollama.exe"))
	}
	paths = append(paths,
		`C:\Program Files\Ollama\ollama.exe`,
		`C:\Program Files (x86)\Ollama\ollama.exe`,
	)
	if profile := os.Getenv("USERPROFILE"); profile != "" {
		paths = append(paths,
			filepath.Join(profile, "Ollama", "ollama.exe"),
			filepath.Join(profile, ".ollama", "ollama.exe"),
		)
	}
	return paths
}

// detach starts the child without a console and in its own process group.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | createNoWindow | detachedProcess,
	}
}
