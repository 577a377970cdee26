// Package ledger talks to the staking program that mirrors challenge
// stakes and rewards. The program is reached over JSON-RPC under the
// "ledger" namespace.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fitstake_miniapp/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const (
	methodInitWallet    = "ledger_initWallet"
	methodCreateAccount = "ledger_createAccount"
	methodStake         = "ledger_stake"
	methodPayout        = "ledger_distributeReward"
	methodGetBalance    = "ledger_getBalance"

	defaultTimeout = 15 * time.Second
)

var (
	ErrNotConfigured    = errors.New("ledger url is not configured")
	ErrInvalidRecipient = errors.New("invalid payout recipient")
	ErrInvalidAmount    = errors.New("amount must be positive")
)

type Config struct {
	URL       string        `json:"url"`
	Authority string        `json:"authority"`
	Timeout   time.Duration `json:"timeout"`
}

type Client struct {
	cfg Config

	mu     sync.Mutex
	rpc    *rpc.Client
	ready  bool
	dialer func(ctx context.Context, url string) (*rpc.Client, error)
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		cfg:    cfg,
		dialer: rpc.DialContext,
	}
}

// NewWithRPC uses an already connected rpc client.
func NewWithRPC(client *rpc.Client, cfg Config) *Client {
	c := New(cfg)
	c.rpc = client
	return c
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rpc != nil {
		c.rpc.Close()
		c.rpc = nil
	}
	c.ready = false
}

func (c *Client) conn(ctx context.Context) (*rpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rpc != nil {
		return c.rpc, nil
	}
	if c.cfg.URL == "" {
		return nil, ErrNotConfigured
	}

	client, err := c.dialer(ctx, c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ledger: %w", err)
	}
	c.rpc = client

	return client, nil
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	client, err := c.conn(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := client.CallContext(ctx, result, method, args...); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	return nil
}

// InitWallet makes sure the authority wallet exists on the ledger. Only
// the first successful call reaches the ledger.
func (c *Client) InitWallet(ctx context.Context) error {
	c.mu.Lock()
	ready := c.ready
	c.mu.Unlock()
	if ready {
		return nil
	}

	if err := c.call(ctx, nil, methodInitWallet, c.cfg.Authority); err != nil {
		return err
	}

	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()

	logger.Named("ledger").Info("ledger wallet initialized", zap.String("authority", c.cfg.Authority))
	return nil
}

// CreateAccount opens the ledger account for a challenge seeded with the
// creator's stake and returns its address.
func (c *Client) CreateAccount(ctx context.Context, externalID string, initialStake int64) (string, error) {
	if initialStake <= 0 {
		return "", ErrInvalidAmount
	}

	var address string
	if err := c.call(ctx, &address, methodCreateAccount, externalID, initialStake); err != nil {
		return "", err
	}
	if address == "" {
		return "", fmt.Errorf("%s: empty account address", methodCreateAccount)
	}

	return address, nil
}

func (c *Client) AddStake(ctx context.Context, address string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	return c.call(ctx, nil, methodStake, address, c.cfg.Authority, amount)
}

func (c *Client) Payout(ctx context.Context, address, recipient string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	normalized, err := NormalizeRecipient(recipient)
	if err != nil {
		return err
	}

	return c.call(ctx, nil, methodPayout, address, normalized, amount)
}

func (c *Client) GetBalance(ctx context.Context) (int64, error) {
	var balance int64
	if err := c.call(ctx, &balance, methodGetBalance, c.cfg.Authority); err != nil {
		return 0, err
	}

	return balance, nil
}

// NormalizeRecipient checksums hex wallet addresses. Other non-empty
// identifiers are passed through untouched.
func NormalizeRecipient(recipient string) (string, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", ErrInvalidRecipient
	}

	if strings.HasPrefix(recipient, "0x") || strings.HasPrefix(recipient, "0X") {
		if !common.IsHexAddress(recipient) {
			return "", fmt.Errorf("%w: %s", ErrInvalidRecipient, recipient)
		}
		return common.HexToAddress(recipient).Hex(), nil
	}

	return recipient, nil
}
