package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	folderInbox = "INBOX"
	folderSpam  = "Spam"
)

type SendRequest struct {
	CredentialRef string `json:"credential_ref"`
	From          string `json:"from" binding:"required,email"`
	FromName      string `json:"from_name"`
	To            string `json:"to" binding:"required,email"`
	Subject       string `json:"subject" binding:"required"`
	HTML          string `json:"html"`
	InReplyTo     string `json:"in_reply_to"`
	References    string `json:"references"`
}

type MailboxRequest struct {
	CredentialRef string `json:"credential_ref"`
	Address       string `json:"address" binding:"required"`
}

type SpamMoveRequest struct {
	CredentialRef string   `json:"credential_ref"`
	Address       string   `json:"address" binding:"required"`
	Subject       string   `json:"subject" binding:"required"`
	Folders       []string `json:"folders"`
}

type Message struct {
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	MessageID  string    `json:"message_id"`
	InReplyTo  string    `json:"in_reply_to,omitempty"`
	References string    `json:"references,omitempty"`
	ReceivedAt time.Time `json:"received_at"`

	folder string
	read   bool
}

// Relay is a sandbox mail relay: messages are delivered into in-memory
// mailboxes instead of leaving the process.
type Relay struct {
	mu            sync.Mutex
	boxes         map[string][]*Message
	rejectDomains map[string]bool
	spamRate      float64
	failRate      float64
	rng           *rand.Rand
	relayID       string
}

func NewRelay(spamRate, failRate float64, rejectDomains []string, rng *rand.Rand) *Relay {
	rejects := make(map[string]bool, len(rejectDomains))
	for _, d := range rejectDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			rejects[d] = true
		}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Relay{
		boxes:         make(map[string][]*Message),
		rejectDomains: rejects,
		spamRate:      spamRate,
		failRate:      failRate,
		rng:           rng,
		relayID:       "mailrelay-" + uuid.New().String()[:8],
	}
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func domainOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 {
		return address[i+1:]
	}
	return ""
}

func (r *Relay) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	to := normalize(req.To)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rejectDomains[domainOf(to)] {
		log.Warn().Str("from", req.From).Str("to", to).Msg("recipient rejected")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("550 5.1.1 <%s>: mailbox does not exist", to)})
		return
	}
	if r.failRate > 0 && r.rng.Float64() < r.failRate {
		log.Warn().Str("from", req.From).Str("to", to).Msg("simulated transient failure")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "421 4.7.0 try again later"})
		return
	}

	folder := folderInbox
	if r.spamRate > 0 && r.rng.Float64() < r.spamRate {
		folder = folderSpam
	}
	msg := &Message{
		From:       normalize(req.From),
		Subject:    req.Subject,
		Body:       req.HTML,
		MessageID:  fmt.Sprintf("<%s@%s>", uuid.NewString(), r.relayID),
		InReplyTo:  req.InReplyTo,
		References: req.References,
		ReceivedAt: time.Now().UTC(),
		folder:     folder,
	}
	r.boxes[to] = append(r.boxes[to], msg)

	log.Info().
		Str("message_id", msg.MessageID).
		Str("from", msg.From).
		Str("to", to).
		Str("folder", folder).
		Msg("message delivered")
	c.JSON(http.StatusOK, gin.H{"message_id": msg.MessageID})
}

// Unread returns unread messages from every folder and marks them read.
func (r *Relay) Unread(c *gin.Context) {
	var req MailboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Message, 0)
	for _, m := range r.boxes[normalize(req.Address)] {
		if m.read {
			continue
		}
		m.read = true
		out = append(out, *m)
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// MoveFromSpam moves spam messages with the given subject back to the inbox.
func (r *Relay) MoveFromSpam(c *gin.Context) {
	var req SpamMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	moved := false
	for _, m := range r.boxes[normalize(req.Address)] {
		if m.folder == folderSpam && m.Subject == req.Subject {
			m.folder = folderInbox
			moved = true
		}
	}
	if moved {
		log.Info().Str("address", req.Address).Str("subject", req.Subject).Msg("moved out of spam")
	}
	c.JSON(http.StatusOK, gin.H{"moved": moved})
}

func (r *Relay) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"relay_id":  r.relayID,
		"timestamp": time.Now().UTC(),
	})
}

// folderOf reports where a message landed. Used by tests.
func (r *Relay) folderOf(address, messageID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.boxes[normalize(address)] {
		if m.MessageID == messageID {
			return m.folder
		}
	}
	return ""
}

func SetupRouter(relay *Relay) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	v1 := router.Group("/api/v1/mail")
	{
		v1.POST("/send", relay.Send)
		v1.POST("/unread", relay.Unread)
		v1.POST("/spam/move", relay.MoveFromSpam)
	}
	router.GET("/health", relay.HealthCheck)
	return router
}
