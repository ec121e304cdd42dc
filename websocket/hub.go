package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/anjiri1684/referral_payments/models"
	"github.com/anjiri1684/referral_payments/services"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const EventReferralCompleted = "referral.completed"

const defaultWriteTimeout = 5 * time.Second

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Client struct {
	UserID uuid.UUID

	conn Conn
	mu   sync.Mutex
}

// write gives up once timeout passes so a stalled peer cannot hold up the
// caller, which is usually a redeeming user's request.
func (c *Client) write(v interface{}, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// ReferralEvent is pushed to a referrer when one of their codes is redeemed.
type ReferralEvent struct {
	Type            string           `json:"type"`
	Referral        *models.Referral `json:"referral"`
	TotalReferrals  int              `json:"totalReferrals"`
	ReferralRewards decimal.Decimal  `json:"referralRewards"`
}

// Hub tracks live connections per user. A user may hold several at once.
type Hub struct {
	// WriteTimeout bounds each write to a single connection.
	WriteTimeout time.Duration

	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		WriteTimeout: defaultWriteTimeout,
		clients:      make(map[uuid.UUID]map[*Client]struct{}),
		logger:       logger.With().Str("component", "ws").Logger(),
	}
}

func (h *Hub) Register(userID uuid.UUID, conn Conn) *Client {
	client := &Client{UserID: userID, conn: conn}

	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[userID] = set
	}
	set[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug().Str("user_id", userID.String()).Msg("client registered")
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(client)
	h.logger.Debug().Str("user_id", client.UserID.String()).Msg("client unregistered")
}

// remove expects h.mu to be held.
func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.UserID)
	}
}

func (h *Hub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Notify writes payload to every connection of userID and returns how many
// writes succeeded. Connections that fail are closed and dropped.
func (h *Hub) Notify(userID uuid.UUID, payload interface{}) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	var dead []*Client
	for _, c := range targets {
		if err := c.write(payload, h.WriteTimeout); err != nil {
			h.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("dropping client after failed write")
			_ = c.conn.Close()
			dead = append(dead, c)
			continue
		}
		delivered++
	}

	if len(dead) > 0 {
		h.mu.Lock()
		for _, c := range dead {
			h.remove(c)
		}
		h.mu.Unlock()
	}
	return delivered
}

func (h *Hub) ReferralCompleted(_ context.Context, referrer *models.User, referral *models.Referral) {
	if referrer == nil {
		return
	}
	h.Notify(referrer.ID, ReferralEvent{
		Type:            EventReferralCompleted,
		Referral:        referral,
		TotalReferrals:  referrer.TotalReferrals,
		ReferralRewards: referrer.ReferralRewards,
	})
}

var _ services.ReferralNotifier = (*Hub)(nil)
