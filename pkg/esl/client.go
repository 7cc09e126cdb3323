// Package esl connects the orchestrator to a FreeSWITCH event socket:
// it subscribes to channel events, maps them onto the orchestrator's
// event kinds, and implements the media-leg handle with socket API
// commands.
package esl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/percipia/eslgo"
	"github.com/percipia/eslgo/command"
	"github.com/sirupsen/logrus"

	"playrec/pkg/app"
)

const commandTimeout = 5 * time.Second

// Client wraps an event-socket connection.
type Client struct {
	conn *eslgo.Conn
	log  *logrus.Entry
}

// Connect dials the switch's event socket.
func Connect(address, password string, log *logrus.Entry) (*Client, error) {
	conn, err := eslgo.Dial(address, password, func() {
		log.Warn("event socket disconnected")
	})
	if err != nil {
		return nil, fmt.Errorf("esl dial %s: %w", address, err)
	}
	log.Infof("connected to event socket at %s", address)
	return &Client{conn: conn, log: log}, nil
}

// GlobalVar fetches a switch global variable, e.g. sound_prefix or
// recordings_dir.
func (c *Client) GlobalVar(ctx context.Context, name string) (string, error) {
	raw, err := c.conn.SendCommand(ctx, command.API{
		Command:   "global_getvar",
		Arguments: name,
	})
	if err != nil {
		return "", fmt.Errorf("global_getvar %s: %w", name, err)
	}
	return strings.TrimSpace(string(raw.Body)), nil
}

// Attach subscribes to channel events and dispatches them to the
// orchestrator. Reactions run on the listener goroutine; ordering per
// leg follows the order the switch produced the events.
func (c *Client) Attach(ctx context.Context, a *app.PlayRec) error {
	if err := c.conn.EnableEvents(ctx); err != nil {
		return fmt.Errorf("enable events: %w", err)
	}
	c.conn.RegisterEventListener(eslgo.EventListenAll, func(e *eslgo.Event) {
		kind, ok := eventKind(e.GetName())
		if !ok {
			return
		}
		h := newLegHandle(c.conn, c.log, e)
		if h.ID() == "" {
			c.log.Warnf("event %s without a channel uuid, dropping", kind)
			return
		}
		a.OnEvent(kind, h)
	})
	return nil
}

// Originate places an outbound test call to dest, parking it so the
// orchestrator's park reaction picks it up. Returns the origination
// uuid of the new leg.
func (c *Client) Originate(ctx context.Context, dest string) (string, error) {
	id := uuid.NewString()
	args := fmt.Sprintf("{origination_uuid=%s}%s &park()", id, dest)
	_, err := c.conn.SendCommand(ctx, command.API{
		Command:    "originate",
		Arguments:  args,
		Background: true,
	})
	if err != nil {
		return "", fmt.Errorf("originate %s: %w", dest, err)
	}
	c.log.Infof("originated test call %s to %s", id, dest)
	return id, nil
}

// Close tears down the event-socket connection.
func (c *Client) Close() {
	c.conn.ExitAndClose()
}
