// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// SINK
// =============================================================================

// Sink receives folded assistant content. FoldAssistantFragment reports
// false when the target session no longer exists.
type Sink interface {
	FoldAssistantFragment(sessionID, content string) bool
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(sessionID, content string) bool

// FoldAssistantFragment implements Sink.
func (f SinkFunc) FoldAssistantFragment(sessionID, content string) bool {
	return f(sessionID, content)
}

// =============================================================================
// STATE
// =============================================================================

// State is the assembler's position in the reply stream.
type State int

const (
	// StateAwaitingChunk: every received byte has been consumed.
	StateAwaitingChunk State = iota
	// StatePartialLine: an incomplete record is waiting for more bytes.
	StatePartialLine
	// StateDone: the stream is exhausted; Feed is ignored.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingChunk:
		return "awaiting_chunk"
	case StatePartialLine:
		return "partial_line"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// =============================================================================
// RESULT
// =============================================================================

// Result summarises one assembled turn.
type Result struct {
	// Content is the full accumulated assistant text.
	Content string
	// DoneSeen reports whether a completion record arrived.
	DoneSeen bool
	// Records counts parsed records; Skipped counts malformed ones.
	Records int
	Skipped int
	// Errors collects "error" fields reported by the server.
	Errors []string
	// Detached is set when the target session vanished mid-stream.
	Detached bool
	// Stats holds timing and token counts.
	Stats StreamStats
}

// Err returns the first server-reported error, if any.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return &ClientError{Type: ErrTypeInvalidResponse, Message: r.Errors[0]}
}

// =============================================================================
// ASSEMBLER
// =============================================================================

// chunkSize bounds a single read from the reply body.
const chunkSize = 4096

// errDoneRecord ends the current chunk pass.
var errDoneRecord = errors.New("done record")

// Assembler turns the reply byte stream of one chat turn into folds
// against a fixed session id. It is not safe for concurrent use; one
// goroutine drives it from the first Feed until Finish.
type Assembler struct {
	sink      Sink
	sessionID string
	log       *zap.Logger

	dec   transform.Transformer
	carry []byte // undecoded tail of a split UTF-8 sequence
	line  string // incomplete record text

	acc    strings.Builder
	state  State
	result Result
}

// NewAssembler creates an assembler that folds into sessionID on sink.
func NewAssembler(sink Sink, sessionID string, log *zap.Logger) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Assembler{
		sink:      sink,
		sessionID: sessionID,
		log:       log.Named("assembler").With(zap.String("session", sessionID)),
		dec:       unicode.UTF8.NewDecoder(),
	}
	a.result.Stats.StartTime = time.Now()
	return a
}

// State returns the current protocol state.
func (a *Assembler) State() State {
	return a.state
}

// Content returns the text accumulated so far.
func (a *Assembler) Content() string {
	return a.acc.String()
}

// Feed consumes one chunk of the reply body. Complete records are handled
// in order; a completion record ends the pass and any complete records
// after it in the same chunk are dropped. The incomplete tail is kept.
func (a *Assembler) Feed(chunk []byte) {
	if a.state == StateDone {
		return
	}
	text := a.line + a.decode(chunk, false)
	a.line = ""

	records := strings.Split(text, "\n")
	a.line = records[len(records)-1]
	for _, rec := range records[:len(records)-1] {
		if err := a.handle(rec); errors.Is(err, errDoneRecord) {
			break
		}
	}

	if a.line != "" || len(a.carry) > 0 {
		a.state = StatePartialLine
	} else {
		a.state = StateAwaitingChunk
	}
}

// Finish marks the stream as exhausted. A non-blank incomplete record is
// handled as the final record. Finish is idempotent.
func (a *Assembler) Finish() Result {
	if a.state == StateDone {
		return a.result
	}
	tail := a.line + a.decode(nil, true)
	a.line = ""
	a.handle(tail)

	a.state = StateDone
	a.result.Content = a.acc.String()
	a.result.Stats.EndTime = time.Now()
	a.result.Stats.finalize()
	return a.result
}

// Run reads r to exhaustion, feeding each chunk in arrival order, and
// returns the finished Result. A read error ends the turn and is returned
// with the partial Result; fragments already folded stay applied.
func (a *Assembler) Run(ctx context.Context, r io.Reader) (Result, error) {
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return a.Finish(), err
		}
		n, err := r.Read(buf)
		if n > 0 {
			a.Feed(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			res := a.Finish()
			a.log.Debug("stream finished",
				zap.Int("records", res.Records),
				zap.Int("skipped", res.Skipped),
				zap.Bool("done", res.DoneSeen))
			return res, nil
		}
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return a.Finish(), cerr
			}
			a.log.Warn("stream read failed", zap.Error(err))
			return a.Finish(), fmt.Errorf("read stream: %w", err)
		}
	}
}

// handle processes one candidate record.
func (a *Assembler) handle(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var rec chatRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		a.result.Skipped++
		a.log.Debug("skipping malformed record", zap.Error(err))
		return nil
	}
	a.result.Records++

	if rec.Model != "" {
		a.result.Stats.Model = rec.Model
	}
	if rec.Error != "" {
		a.result.Errors = append(a.result.Errors, rec.Error)
		a.log.Warn("server reported error", zap.String("error", rec.Error))
	}
	if rec.Done {
		a.result.DoneSeen = true
		a.result.Stats.record(&rec)
		return errDoneRecord
	}

	fragment := rec.content()
	if fragment == "" {
		return nil
	}
	a.acc.WriteString(fragment)
	a.result.Stats.recordFragment()

	if !a.sink.FoldAssistantFragment(a.sessionID, a.acc.String()) && !a.result.Detached {
		a.result.Detached = true
		a.log.Debug("target session gone, fragments dropped")
	}
	return nil
}

// decode converts bytes to text, holding back an incomplete trailing
// UTF-8 sequence until the next call. With atEOF, a held-back sequence is
// emitted as U+FFFD.
func (a *Assembler) decode(chunk []byte, atEOF bool) string {
	src := make([]byte, 0, len(a.carry)+len(chunk))
	src = append(src, a.carry...)
	src = append(src, chunk...)
	a.carry = nil
	if len(src) == 0 {
		return ""
	}

	var out strings.Builder
	dst := make([]byte, len(src)*3+utf8.UTFMax)
	for {
		nDst, nSrc, err := a.dec.Transform(dst, src, atEOF)
		out.Write(dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			return out.String()
		case errors.Is(err, transform.ErrShortSrc):
			a.carry = append(a.carry, src...)
			return out.String()
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				dst = make([]byte, len(dst)*2)
			}
		default:
			a.log.Debug("utf-8 decode failed", zap.Error(err))
			return out.String()
		}
	}
}

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// StreamStats holds statistics collected during one turn.
type StreamStats struct {
	Model string

	// Timing (local clock)
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time

	// Durations reported by the server on the completion record
	TotalDuration      time.Duration
	LoadDuration       time.Duration
	PromptEvalDuration time.Duration
	EvalDuration       time.Duration

	// Fragments counts content records; token counts come from the server.
	Fragments        int
	PromptTokens     int
	CompletionTokens int

	// Computed
	TTFT            time.Duration
	TokensPerSecond float64
}

func (s *StreamStats) recordFragment() {
	s.Fragments++
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = time.Now()
		s.TTFT = s.FirstTokenTime.Sub(s.StartTime)
	}
}

func (s *StreamStats) record(rec *chatRecord) {
	s.TotalDuration = time.Duration(rec.TotalDuration)
	s.LoadDuration = time.Duration(rec.LoadDuration)
	s.PromptEvalDuration = time.Duration(rec.PromptEvalDuration)
	s.EvalDuration = time.Duration(rec.EvalDuration)
	s.PromptTokens = rec.PromptEvalCount
	s.CompletionTokens = rec.EvalCount
}

func (s *StreamStats) finalize() {
	if s.CompletionTokens == 0 {
		s.CompletionTokens = s.Fragments
	}
	if s.EvalDuration > 0 {
		s.TokensPerSecond = float64(s.CompletionTokens) / s.EvalDuration.Seconds()
	} else if d := s.EndTime.Sub(s.FirstTokenTime); !s.FirstTokenTime.IsZero() && d > 0 {
		s.TokensPerSecond = float64(s.CompletionTokens) / d.Seconds()
	}
}

// Format returns a one-line summary such as "1.2s | 42 tokens | 35.0 tok/s | TTFT 180ms".
func (s StreamStats) Format() string {
	total := s.TotalDuration
	if total == 0 && !s.EndTime.IsZero() {
		total = s.EndTime.Sub(s.StartTime)
	}
	var dur string
	if total < time.Second {
		dur = fmt.Sprintf("%dms", total.Milliseconds())
	} else {
		dur = fmt.Sprintf("%.1fs", total.Seconds())
	}
	return fmt.Sprintf("%s | %d tokens | %.1f tok/s | TTFT %dms",
		dur, s.CompletionTokens, s.TokensPerSecond, s.TTFT.Milliseconds())
}
