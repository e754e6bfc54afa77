package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/gateway"
)

// How far back the menu channel is scanned for stale menus.
const menuCleanupWindow = 50

const (
	menuTitle       = "🎟 Sistema de Tickets"
	menuDescription = "📌 Elija la categoría de su queja. Si no está seguro de cuál elegir, no dude en preguntar en #soporte-publico"
	menuColor       = 0xFFD700
)

var errMenuChannelUnset = errors.New("menu channel not configured")

var categoryStyles = map[domain.Category]gateway.ButtonStyle{
	domain.CategorySupport:      gateway.ButtonPrimary,
	domain.CategoryStore:        gateway.ButtonSuccess,
	domain.CategoryBug:          gateway.ButtonDanger,
	domain.CategoryPlayerReport: gateway.ButtonSecondary,
}

// MenuService posts the category menu people open tickets from.
type MenuService struct {
	gateway   gateway.Gateway
	logger    *zap.Logger
	channelID string
	bannerURL string
}

// NewMenuService constructs the menu publisher.
func NewMenuService(gw gateway.Gateway, channelID, bannerURL string, logger *zap.Logger) *MenuService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MenuService{gateway: gw, logger: logger, channelID: channelID, bannerURL: bannerURL}
}

// Publish replaces the menu in the menu channel. Messages by botUserID among
// the most recent ones are deleted first, then the optional banner and the
// menu are posted.
func (m *MenuService) Publish(ctx context.Context, botUserID string) error {
	if m.channelID == "" {
		return errMenuChannelUnset
	}
	if _, err := m.gateway.FetchChannel(ctx, m.channelID); err != nil {
		return fmt.Errorf("fetch menu channel %s: %w", m.channelID, err)
	}

	m.cleanup(ctx, botUserID)

	if m.bannerURL != "" {
		banner := gateway.OutgoingMessage{Embeds: []gateway.Embed{{ImageURL: m.bannerURL, Color: menuColor}}}
		if err := m.gateway.SendMessage(ctx, m.channelID, banner); err != nil {
			m.logger.Warn("send banner failed", zap.String("banner_url", m.bannerURL), zap.Error(err))
		}
	}

	if err := m.gateway.SendMessage(ctx, m.channelID, menuMessage()); err != nil {
		return fmt.Errorf("send menu: %w", err)
	}
	m.logger.Info("menu published", zap.String("channel_id", m.channelID))
	return nil
}

func (m *MenuService) cleanup(ctx context.Context, botUserID string) {
	if botUserID == "" {
		m.logger.Warn("bot user id unknown; keeping old menu messages")
		return
	}
	recent, err := m.gateway.FetchMessages(ctx, m.channelID, menuCleanupWindow, "")
	if err != nil {
		m.logger.Warn("list menu channel messages failed", zap.Error(err))
		return
	}
	for _, msg := range recent {
		if msg.AuthorID != botUserID {
			continue
		}
		if err := m.gateway.DeleteMessage(ctx, m.channelID, msg.ID); err != nil {
			m.logger.Debug("delete old menu message failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
}

func menuMessage() gateway.OutgoingMessage {
	buttons := make([]gateway.Button, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		buttons = append(buttons, gateway.Button{ID: c.ButtonID(), Label: c.Label(), Style: categoryStyles[c]})
	}
	return gateway.OutgoingMessage{
		Embeds:  []gateway.Embed{{Title: menuTitle, Description: menuDescription, Color: menuColor}},
		Buttons: buttons,
	}
}
