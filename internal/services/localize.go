package services

import (
	"fmt"

	"orderflow/internal/domain"
)

type pushMessage struct {
	title string
	body  string
}

// staffBodies include the human-facing daily number and table; clientBodies
// stay generic so no internal numbering reaches anonymous devices.
var staffBodies = map[string]map[domain.EventKind]string{
	"en": {
		domain.EventNew:       "New order #%d at table %d",
		domain.EventApproved:  "Order #%d (table %d) approved",
		domain.EventReady:     "Order #%d (table %d) is ready",
		domain.EventServed:    "Order #%d (table %d) served",
		domain.EventCancelled: "Order #%d (table %d) cancelled",
	},
	"tr": {
		domain.EventNew:       "Yeni siparis #%d, masa %d",
		domain.EventApproved:  "Siparis #%d (masa %d) onaylandi",
		domain.EventReady:     "Siparis #%d (masa %d) hazir",
		domain.EventServed:    "Siparis #%d (masa %d) servis edildi",
		domain.EventCancelled: "Siparis #%d (masa %d) iptal edildi",
	},
	"ru": {
		domain.EventNew:       "Новый заказ #%d, стол %d",
		domain.EventApproved:  "Заказ #%d (стол %d) подтверждён",
		domain.EventReady:     "Заказ #%d (стол %d) готов",
		domain.EventServed:    "Заказ #%d (стол %d) подан",
		domain.EventCancelled: "Заказ #%d (стол %d) отменён",
	},
}

var clientBodies = map[string]map[domain.EventKind]string{
	"en": {
		domain.EventNew:       "Your order has been received",
		domain.EventApproved:  "Your order has been approved",
		domain.EventReady:     "Your order is ready",
		domain.EventServed:    "Enjoy your meal!",
		domain.EventCancelled: "Your order has been cancelled",
	},
	"tr": {
		domain.EventNew:       "Siparisiniz alindi",
		domain.EventApproved:  "Siparisiniz onaylandi",
		domain.EventReady:     "Siparisiniz hazir",
		domain.EventServed:    "Afiyet olsun!",
		domain.EventCancelled: "Siparisiniz iptal edildi",
	},
	"ru": {
		domain.EventNew:       "Ваш заказ принят",
		domain.EventApproved:  "Ваш заказ подтверждён",
		domain.EventReady:     "Ваш заказ готов",
		domain.EventServed:    "Приятного аппетита!",
		domain.EventCancelled: "Ваш заказ отменён",
	},
}

var titles = map[string]string{
	"en": "Orders",
	"tr": "Siparisler",
	"ru": "Заказы",
}

const fallbackLang = "en"

func localize(lang string, role domain.Role, kind domain.EventKind, o *domain.Order) pushMessage {
	if _, ok := titles[lang]; !ok {
		lang = fallbackLang
	}
	if role == domain.RoleClient {
		return pushMessage{title: titles[lang], body: clientBodies[lang][kind]}
	}
	return pushMessage{
		title: titles[lang],
		body:  fmt.Sprintf(staffBodies[lang][kind], o.DailyNumber, o.TableID),
	}
}
