package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parkeasy/parkeasy/internal/models"
)

// handleUnregistered answers numbers that belong to no owner or attendant:
// parked customers asking about their vehicle, and prospective customers who
// get the marketing menu and lead capture.
func (e *Engine) handleUnregistered(ctx context.Context, from, text string) error {
	key := "guest:" + from
	text = e.resolveMenuReply(key, models.StateIdle, text)

	txn, err := e.store.LatestTransactionForCustomer(ctx, from)
	if err != nil {
		return err
	}
	if txn != nil && txn.VehicleState == models.VehicleInside {
		return e.send(ctx, from, fmt.Sprintf("Welcome back! Your vehicle %s is currently parked. Status: %s", txn.VehicleNumber, txn.Status))
	}

	switch strings.ToLower(strings.TrimSpace(text)) {
	case "tell me more":
		return e.send(ctx, from,
			"ParkEasy turns any WhatsApp number into a complete parking lot management system. "+
				"Attendants check vehicles in and out with a single message, customers get digital receipts "+
				"and monthly e-passes, and owners see live collections without installing anything.\n\n"+
				"Visit our website to learn more:\n"+websiteURL)
	case "request a call":
		if err := e.send(ctx, from, "Thank you for your interest! Our team will call you at this number shortly."); err != nil {
			return err
		}
		if e.adminPhone != "" {
			if err := e.send(ctx, e.adminPhone, fmt.Sprintf("🔔 New Lead!\nNumber: %s\nRequested a call.", from)); err != nil {
				slog.Error("Engine lead notification failed", "error", err)
			}
		}
		return nil
	default:
		menu := models.ButtonMenu{
			Body: "Welcome to ParkEasy! 🚗\n\nWe provide smart WhatsApp solutions for parking management. How can we help you today?",
			Buttons: []models.Button{
				{ID: "lead_info", Title: "Tell Me More"},
				{ID: "lead_call", Title: "Request a Call"},
			},
		}
		return e.sendMenu(ctx, from, key, menu)
	}
}
