// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package benchmark times a fixed set of prompts against installed models.
//
// Each case is sent as a single-turn chat and its reply is assembled by the
// same stream parser chat sessions use, so the numbers reported here match
// the per-turn statistics shown in the UI.
//
//	runner := benchmark.NewRunner(client, log)
//	res, err := runner.Run(ctx, "llama3", benchmark.StandardCases())
//	fmt.Println(res.Summary())
//
// Several models can be compared with RunComparison; Comparison.Fastest and
// Comparison.LowestLatency pick the winners.
package benchmark
