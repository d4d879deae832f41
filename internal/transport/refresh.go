package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yyupcompany/kyyupgame-sub066/internal/infra/auth"
	"go.uber.org/zap"
)

const (
	refreshLockTTL = 15 * time.Second
	// сколько ждем, пока соседний инстанс под блокировкой обновит токен
	refreshWait            = 300 * time.Millisecond
	proactiveRefreshWindow = 30 * time.Second
)

var errNoRefreshToken = errors.New("no refresh token")

// refresh обменивает refresh токен на новую пару.
// Параллельные 401 внутри процесса схлопываются в один запрос,
// между процессами их разводит Locker (redis SETNX).
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	v, err, _ := c.refreshes.Do("refresh", func() (interface{}, error) {
		// Кто-то уже успел обновить, пока мы ждали ответа с 401
		if cur, _ := c.tokens.Token(ctx); cur != "" && cur != stale {
			return cur, nil
		}

		if locker, ok := c.tokens.(auth.Locker); ok {
			acquired, err := locker.TryLock(ctx, refreshLockTTL)
			if err != nil {
				return "", fmt.Errorf("refresh lock: %w", err)
			}
			if !acquired {
				return c.awaitForeignRefresh(ctx, stale)
			}
			defer func() {
				if err := locker.Unlock(context.WithoutCancel(ctx)); err != nil {
					c.logger.Warn("refresh lock release failed", zap.Error(err))
				}
			}()
		}

		token, err := c.exchange(ctx)
		if err != nil {
			c.metrics.TokenRefreshTotal.WithLabelValues("failure").Inc()
			if cerr := c.tokens.Clear(ctx); cerr != nil {
				c.logger.Warn("token store clear failed", zap.Error(cerr))
			}
			c.logger.Warn("token refresh failed", zap.Error(err))
			return "", err
		}
		c.metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
		c.logger.Info("token refreshed", zap.String("token", auth.Fingerprint(token)))
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) awaitForeignRefresh(ctx context.Context, stale string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(refreshWait):
	}
	cur, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}
	if cur == "" || cur == stale {
		c.metrics.TokenRefreshTotal.WithLabelValues("contended").Inc()
		return "", errors.New("token refresh in progress elsewhere")
	}
	return cur, nil
}

func (c *Client) exchange(ctx context.Context) (string, error) {
	refreshToken, err := c.tokens.RefreshToken(ctx)
	if err != nil {
		return "", err
	}
	if refreshToken == "" {
		return "", errNoRefreshToken
	}

	payload, _ := json.Marshal(map[string]string{"refreshToken": refreshToken})
	var resp *Response
	_, err = c.regular.Call(ctx, func(ctx context.Context) error {
		r, err := c.send(ctx, c.httpClient, http.MethodPost, c.refreshPath, nil, payload, RequestIDFromContext(ctx), false)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", err
	}

	token, newRefresh := extractTokens(resp)
	if token == "" {
		return "", fmt.Errorf("%w: refresh response without token", ErrMalformedResponse)
	}
	if err := c.tokens.SetTokens(ctx, token, newRefresh); err != nil {
		return "", fmt.Errorf("store tokens: %w", err)
	}
	return token, nil
}

// extractTokens: бэкенд отдает токен то в data, то на верхнем уровне.
func extractTokens(resp *Response) (token, refreshToken string) {
	for _, p := range []string{"data.token", "data.accessToken", "token", "accessToken"} {
		if v := resp.Field(p).String(); v != "" {
			token = v
			break
		}
	}
	for _, p := range []string{"data.refreshToken", "refreshToken"} {
		if v := resp.Field(p).String(); v != "" {
			refreshToken = v
			break
		}
	}
	return token, refreshToken
}

func (c *Client) refreshIfExpiring(ctx context.Context) {
	token, err := c.tokens.Token(ctx)
	if err != nil || token == "" {
		return
	}
	if !auth.ExpiresWithin(token, proactiveRefreshWindow, c.now()) {
		return
	}
	if _, err := c.refresh(ctx, token); err != nil {
		c.logger.Debug("proactive refresh skipped", zap.Error(err))
	}
}

// Login выполняет вход и сохраняет полученную пару токенов.
func (c *Client) Login(ctx context.Context, username, password string) error {
	resp, err := c.Post(ctx, loginPath, map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	token, refreshToken := extractTokens(resp)
	if token == "" {
		return fmt.Errorf("%w: login response without token", ErrMalformedResponse)
	}
	if err := c.tokens.SetTokens(ctx, token, refreshToken); err != nil {
		return fmt.Errorf("store tokens: %w", err)
	}
	c.logger.Info("logged in", zap.String("user", username), zap.String("token", auth.Fingerprint(token)))
	return nil
}
