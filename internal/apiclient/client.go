// Package apiclient is a fasthttp client for the game API.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/tictactoe-server/internal/apperr"
	"github.com/park285/tictactoe-server/internal/domain"
	"github.com/park285/tictactoe-server/pkg/gamedto"
)

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

// WithRetry sets the attempt count for idempotent reads.
func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDialer replaces the network dialer, e.g. with an in-memory listener.
func WithDialer(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func gamePath(id int64, tail string) string {
	return "/api/games/" + strconv.FormatInt(id, 10) + tail
}

func (c *Client) CreateGame(ctx context.Context, boardSize *int64) (*domain.Game, error) {
	var g domain.Game
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/games", gamedto.CreateGameRequest{BoardSize: boardSize}, &g, false); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) GetGame(ctx context.Context, id int64) (*domain.Game, error) {
	var g domain.Game
	if err := c.doJSON(ctx, fasthttp.MethodGet, gamePath(id, ""), nil, &g, true); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) GetGameWithMoves(ctx context.Context, id int64) (*domain.GameWithMoves, error) {
	var g domain.GameWithMoves
	if err := c.doJSON(ctx, fasthttp.MethodGet, gamePath(id, "/full"), nil, &g, true); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) ListGames(ctx context.Context, status *domain.GameStatus) ([]domain.GameListItem, error) {
	path := "/api/games"
	if status != nil {
		path += "?status=" + status.String()
	}
	var items []domain.GameListItem
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &items, true); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) UpdateGame(ctx context.Context, id int64, req gamedto.UpdateGameRequest) (*domain.Game, error) {
	var g domain.Game
	if err := c.doJSON(ctx, fasthttp.MethodPatch, gamePath(id, ""), req, &g, false); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) DeleteGame(ctx context.Context, id int64) error {
	return c.doJSON(ctx, fasthttp.MethodDelete, gamePath(id, ""), nil, nil, false)
}

// AddMove is never retried: a lost response does not mean the move was lost.
func (c *Client) AddMove(ctx context.Context, id, position int64, player domain.Player) (*domain.GameMove, error) {
	var mv domain.GameMove
	req := gamedto.MoveRequest{Position: &position, Player: player}
	if err := c.doJSON(ctx, fasthttp.MethodPost, gamePath(id, "/moves"), req, &mv, false); err != nil {
		return nil, err
	}
	return &mv, nil
}

func (c *Client) ListMoves(ctx context.Context, id int64) ([]domain.GameMove, error) {
	var moves []domain.GameMove
	if err := c.doJSON(ctx, fasthttp.MethodGet, gamePath(id, "/moves"), nil, &moves, true); err != nil {
		return nil, err
	}
	return moves, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				return decodeSuccess(resp.Body(), out)
			}
			lastErr = decodeFailure(status, resp.Body())
			if !shouldRetryStatus(status) {
				return lastErr
			}
		}
		if attempt == attempts {
			break
		}
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func decodeSuccess(body []byte, out any) error {
	var env gamedto.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("unexpected failure envelope: %s", truncate(string(body), 512))
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// decodeFailure turns an error envelope back into an *apperr.Error.
func decodeFailure(status int, body []byte) error {
	var env gamedto.Envelope
	msg := ""
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		msg = env.Error.Message
	}
	if msg == "" {
		msg = fmt.Sprintf("api error: status=%d body=%s", status, truncate(string(body), 512))
	}
	return &apperr.Error{Kind: kindForStatus(status), Message: msg}
}

func kindForStatus(status int) apperr.Kind {
	switch status {
	case fasthttp.StatusBadRequest:
		return apperr.KindInvalidInput
	case fasthttp.StatusNotFound:
		return apperr.KindNotFound
	case fasthttp.StatusConflict:
		return apperr.KindConflict
	case fasthttp.StatusInternalServerError:
		return apperr.KindStorage
	default:
		return apperr.KindInternal
	}
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
