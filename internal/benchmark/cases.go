// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package benchmark

import (
	"strings"
)

// =============================================================================
// CASE DEFINITIONS
// =============================================================================

// Kind groups cases by what they mostly measure.
type Kind string

const (
	KindLatency     Kind = "latency"
	KindSpeed       Kind = "speed"
	KindCode        Kind = "code"
	KindInstruction Kind = "instruction"
)

// Scorer rates a reply from 0 to 100. A nil Scorer leaves the score unset.
type Scorer func(reply string) float64

// Case is one prompt sent as a fresh single-turn chat.
type Case struct {
	Name   string
	Kind   Kind
	System string
	Prompt string
	Score  Scorer
}

// =============================================================================
// STANDARD SUITE
// =============================================================================

// StandardCases returns the default suite, ordered from cheapest to most
// expensive.
func StandardCases() []Case {
	return []Case{
		{
			Name:   "greeting",
			Kind:   KindLatency,
			Prompt: "Say 'Hello' and nothing else.",
			Score:  ContainsAll("hello"),
		},
		{
			Name:   "haiku",
			Kind:   KindSpeed,
			Prompt: "Write a haiku about a terminal window.",
			Score: func(reply string) float64 {
				switch n := len(nonBlankLines(reply)); {
				case n >= 3:
					return 100
				case len(strings.TrimSpace(reply)) > 10:
					return 70
				default:
					return 30
				}
			},
		},
		{
			Name:   "fibonacci",
			Kind:   KindCode,
			Prompt: "Complete this Go function:\n\nfunc fib(n int) int {\n\t// return the nth Fibonacci number",
			Score:  ContainsAll("return", "fib("),
		},
		{
			Name:   "three languages",
			Kind:   KindInstruction,
			System: "Answer with a numbered list only.",
			Prompt: "List exactly 3 programming languages. Format: 1. Language",
			Score: func(reply string) float64 {
				numbered := 0
				for _, l := range nonBlankLines(reply) {
					if len(l) > 1 && l[0] >= '1' && l[0] <= '9' && (l[1] == '.' || l[1] == ')') {
						numbered++
					}
				}
				switch {
				case numbered == 3:
					return 100
				case numbered > 0:
					return 60
				default:
					return 20
				}
			},
		},
	}
}

// ContainsAll scores the share of words found in the reply, ignoring case.
func ContainsAll(words ...string) Scorer {
	return func(reply string) float64 {
		if len(words) == 0 {
			return 100
		}
		lower := strings.ToLower(reply)
		found := 0
		for _, w := range words {
			if strings.Contains(lower, strings.ToLower(w)) {
				found++
			}
		}
		return 100 * float64(found) / float64(len(words))
	}
}

func nonBlankLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
