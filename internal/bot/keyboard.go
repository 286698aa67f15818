// Package bot – keyboard construction and callback payloads
//
// Wizard options become inline keyboard buttons whose callback data encodes
// the step and the chosen ID ("city_3", "shop_10", "machine_100"). Cities
// and shops get one button per row because their names run long; machines
// are short numbered labels and pack two per row.
package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/washpoint/launchbot/internal/services"
)

// Callback data prefixes, one per wizard step.
const (
	cbCity    = "city"
	cbShop    = "shop"
	cbMachine = "machine"
)

// callbackData encodes one option as callback payload.
func callbackData(prefix string, id int64) string {
	return fmt.Sprintf("%s_%d", prefix, id)
}

// parseCallback splits callback payload into its step prefix and ID.
// The second return is false for payloads this bot never produced.
func parseCallback(data string) (prefix string, id int64, ok bool) {
	prefix, idStr, found := strings.Cut(data, "_")
	if !found {
		return "", 0, false
	}
	switch prefix {
	case cbCity, cbShop, cbMachine:
	default:
		return "", 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return prefix, id, true
}

// cityKeyboard renders city options, one per row.
func cityKeyboard(opts []services.Option) tgbotapi.InlineKeyboardMarkup {
	return singleColumn(cbCity, opts)
}

// shopKeyboard renders shop options, one per row.
func shopKeyboard(opts []services.Option) tgbotapi.InlineKeyboardMarkup {
	return singleColumn(cbShop, opts)
}

// machineKeyboard renders machine options two per row, labelled through the
// per-language button pattern.
func machineKeyboard(opts []services.Option, t texts) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, o := range opts {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf(t.MachineButton, o.Label),
			callbackData(cbMachine, o.ID),
		))
		if len(row) == 2 || i == len(opts)-1 {
			rows = append(rows, row)
			row = nil
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// singleColumn renders options one button per row.
func singleColumn(prefix string, opts []services.Option) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(opts))
	for _, o := range opts {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(o.Label, callbackData(prefix, o.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
