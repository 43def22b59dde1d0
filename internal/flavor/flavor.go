// Package flavor produces decorative announcement text. Nothing it returns
// ever changes coins, stars or positions.
package flavor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrEmptyText = errors.New("flavor: empty text")

type ChaosEvent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	EffectType  string `json:"effectType"`
}

// Announcement renders the event as one announcer line.
func (c ChaosEvent) Announcement() string {
	return fmt.Sprintf("%s: %s", strings.ToUpper(c.Title), c.Description)
}

type Generator interface {
	ChaosEvent(ctx context.Context, round int) (ChaosEvent, error)
	AnnouncerLine(ctx context.Context, player, event string) (string, error)
}

// Fallback answers locally and never fails.
type Fallback struct{}

func (Fallback) ChaosEvent(context.Context, int) (ChaosEvent, error) {
	return ChaosEvent{
		Title:       "Static Noise",
		Description: "A mysterious interference disrupts the board. Nothing happens.",
		EffectType:  "NOTHING",
	}, nil
}

func (Fallback) AnnouncerLine(_ context.Context, player, event string) (string, error) {
	return fmt.Sprintf("%s %s!", player, event), nil
}

// HTTPGenerator asks a remote text service. The service takes
// POST {url}/chaos {"round"} and POST {url}/announce {"player","event"}.
type HTTPGenerator struct {
	URL    string
	Client *http.Client
}

func NewHTTPGenerator(url string, timeout time.Duration) *HTTPGenerator {
	return &HTTPGenerator{
		URL:    strings.TrimRight(url, "/"),
		Client: &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGenerator) ChaosEvent(ctx context.Context, round int) (ChaosEvent, error) {
	var out ChaosEvent
	if err := g.post(ctx, "/chaos", map[string]any{"round": round}, &out); err != nil {
		return ChaosEvent{}, err
	}
	if out.Title == "" || out.Description == "" {
		return ChaosEvent{}, ErrEmptyText
	}
	return out, nil
}

func (g *HTTPGenerator) AnnouncerLine(ctx context.Context, player, event string) (string, error) {
	var out struct {
		Line string `json:"line"`
	}
	if err := g.post(ctx, "/announce", map[string]any{"player": player, "event": event}, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Line) == "" {
		return "", ErrEmptyText
	}
	return out.Line, nil
}

func (g *HTTPGenerator) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("flavor %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("flavor %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("flavor %s: %w", path, err)
	}
	return nil
}

// Safe wraps a generator so callers always get usable text: a failure,
// timeout or empty answer from Primary is replaced by the Fallback answer.
type Safe struct {
	Primary Generator
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewSafe(primary Generator, timeout time.Duration, logger *zap.Logger) *Safe {
	if primary == nil {
		primary = Fallback{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Safe{Primary: primary, Timeout: timeout, Logger: logger}
}

func (s *Safe) ChaosEvent(ctx context.Context, round int) (ChaosEvent, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ev, err := s.Primary.ChaosEvent(ctx, round)
	if err == nil && (ev.Title == "" || ev.Description == "") {
		err = ErrEmptyText
	}
	if err != nil {
		s.Logger.Warn("chaos event fell back", zap.Int("round", round), zap.Error(err))
		return Fallback{}.ChaosEvent(ctx, round)
	}
	return ev, nil
}

func (s *Safe) AnnouncerLine(ctx context.Context, player, event string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	line, err := s.Primary.AnnouncerLine(ctx, player, event)
	if err == nil && strings.TrimSpace(line) == "" {
		err = ErrEmptyText
	}
	if err != nil {
		s.Logger.Warn("announcer line fell back", zap.String("player", player), zap.Error(err))
		return Fallback{}.AnnouncerLine(ctx, player, event)
	}
	return line, nil
}

func (s *Safe) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}
