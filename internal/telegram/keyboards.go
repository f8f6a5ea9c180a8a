package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"massagebook/internal/booking"
	"massagebook/internal/calendar"
	"massagebook/internal/timeslots"
)

// Callback data prefixes.
const (
	cbNoop    = "noop"
	cbService = "svc:"
	cbMonth   = "cal:"
	cbDate    = "date:"
	cbTime    = "time:"
	cbPay     = "pay:"
	cbConfirm = "confirm"
	cbBack    = "back"
	cbCancel  = "cancel"
)

var paymentLabels = map[booking.PaymentMethod]string{
	booking.PaymentCash:          "💵 Cash at appointment",
	booking.PaymentOther:         "🧾 Other (HSA, check)",
	booking.PaymentComplimentary: "🎁 Complimentary",
}

func navRow(back bool) []tgbotapi.InlineKeyboardButton {
	row := make([]tgbotapi.InlineKeyboardButton, 0, 2)
	if back {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbBack))
	}
	return append(row, tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", cbCancel))
}

// serviceKeyboard lists one service per row.
func serviceKeyboard(services []booking.ServiceView) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(services)+1)
	for _, s := range services {
		label := fmt.Sprintf("%s · %s", s.Name, s.Price)
		if s.OnPromo {
			label += " ⭐"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbService+s.ID),
		))
	}
	rows = append(rows, navRow(false))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// calendarKeyboard renders grid as a Sunday-first month with navigation.
// Days that cannot be picked show a dot and do nothing.
func calendarKeyboard(grid calendar.Grid) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 10)

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("◀️", cbMonth+grid.Month.Prev().String()),
		tgbotapi.NewInlineKeyboardButtonData(monthTitle(grid.Month), cbNoop),
		tgbotapi.NewInlineKeyboardButtonData("▶️", cbMonth+grid.Month.Next().String()),
	})

	header := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, h := range calendar.WeekdayHeaders {
		header = append(header, tgbotapi.NewInlineKeyboardButtonData(h[:2], cbNoop))
	}
	rows = append(rows, header)

	for _, week := range grid.Weeks() {
		row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
		for _, c := range week {
			switch {
			case c.Blank:
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", cbNoop))
			case !c.Selectable:
				row = append(row, tgbotapi.NewInlineKeyboardButtonData("·", cbNoop))
			default:
				label := strconv.Itoa(c.Day)
				if c.Selected {
					label = "[" + label + "]"
				}
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cbDate+c.Date.String()))
			}
		}
		rows = append(rows, row)
	}

	rows = append(rows, navRow(true))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func monthTitle(m calendar.YearMonth) string {
	return fmt.Sprintf("%s %d", m.Month, m.Year)
}

// slotsKeyboard groups slot buttons into rows of 3.
func slotsKeyboard(buttons []timeslots.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0)
	var current []tgbotapi.InlineKeyboardButton
	for _, b := range buttons {
		current = append(current, tgbotapi.NewInlineKeyboardButtonData(b.Label, cbTime+b.Time))
		if len(current) == 3 {
			rows = append(rows, current)
			current = nil
		}
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}
	rows = append(rows, navRow(true))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// paymentKeyboard offers every method except card, which needs the web widget.
func paymentKeyboard(methods []booking.PaymentMethod) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(methods)+1)
	for _, m := range methods {
		label, ok := paymentLabels[m]
		if !ok {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbPay+string(m)),
		))
	}
	rows = append(rows, navRow(true))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func summaryKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Confirm booking", cbConfirm)),
		navRow(true),
	)
}
