// Package bot – reply wording
//
// All user-visible strings live here, per language. The deployed fleet is
// Russian-speaking, so Russian is the default; English is matched for
// clients that announce it. Telegram hands us a BCP 47 language code on
// every update and golang.org/x/text picks the best supported match, so an
// unknown or empty code falls back to Russian.
package bot

import "golang.org/x/text/language"

// supported lists the reply languages in priority order; the first entry
// is the fallback.
var supported = []language.Tag{
	language.Russian,
	language.English,
}

var matcher = language.NewMatcher(supported)

// texts is the full set of user-visible strings for one language.
type texts struct {
	ChooseCity    string
	ChooseShop    string
	ChooseMachine string

	NoCities       string
	NoShops        string
	NoMachines     string
	NotConfigured  string
	MachineMissing string

	StoreUnavailable string
	SessionCorrupt   string

	// MachineButton is a fmt pattern taking the machine number.
	MachineButton string
	// LaunchSuccess is a fmt pattern taking machine number, kg, wash count.
	LaunchSuccess string
	// LaunchFailure is a fmt pattern taking the terminal URL.
	LaunchFailure string

	// IPReport/IPError are fmt patterns for the /ip command.
	IPReport string
	IPError  string
	// ProbeOK is a fmt pattern taking URL, status, body; ProbeError takes
	// the error text.
	ProbeOK    string
	ProbeError string
}

var textsRU = texts{
	ChooseCity:    "🏙️ Выберите город:",
	ChooseShop:    "🏪 Выберите точку:",
	ChooseMachine: "🔧 Выберите стиральную машину:",

	NoCities:       "❌ Города не найдены",
	NoShops:        "❌ Магазины не найдены в этом городе",
	NoMachines:     "❌ Машинки не найдены в этом магазине",
	NotConfigured:  "❌ Для этого магазина не настроен URL терминала",
	MachineMissing: "❌ Машинка не найдена",

	StoreUnavailable: "❌ Ошибка подключения к базе данных",
	SessionCorrupt:   "❌ URL терминала не найден",

	MachineButton: "машина %s",
	LaunchSuccess: "✅ Машинка №%d запущена!\n📦 Вес: %g кг\n🧼 Количество стирок: %d",
	LaunchFailure: "❌ Ошибка при запуске машинки\nПроверьте, что терминал доступен: %s",

	IPReport:   "📍 Ваш локальный IP: %s",
	IPError:    "❌ Ошибка получения IP: %s",
	ProbeOK:    "✅ Сервер доступен!\nURL: %s\nСтатус: %d\nОтвет: %s",
	ProbeError: "❌ Ошибка подключения: %s",
}

var textsEN = texts{
	ChooseCity:    "🏙️ Choose a city:",
	ChooseShop:    "🏪 Choose a location:",
	ChooseMachine: "🔧 Choose a washing machine:",

	NoCities:       "❌ No cities found",
	NoShops:        "❌ No locations found in this city",
	NoMachines:     "❌ No machines found at this location",
	NotConfigured:  "❌ This location has no terminal URL configured",
	MachineMissing: "❌ Machine not found",

	StoreUnavailable: "❌ Database connection error",
	SessionCorrupt:   "❌ Terminal URL not found",

	MachineButton: "machine %s",
	LaunchSuccess: "✅ Machine #%d started!\n📦 Load: %g kg\n🧼 Wash count: %d",
	LaunchFailure: "❌ Failed to start the machine\nCheck that the terminal is reachable: %s",

	IPReport:   "📍 Your local IP: %s",
	IPError:    "❌ Failed to get IP: %s",
	ProbeOK:    "✅ Server is reachable!\nURL: %s\nStatus: %d\nResponse: %s",
	ProbeError: "❌ Connection error: %s",
}

// textsByTag maps each supported tag to its string set.
var textsByTag = map[language.Tag]texts{
	language.Russian: textsRU,
	language.English: textsEN,
}

// textsFor picks the string set for a Telegram language code.
func textsFor(langCode string) texts {
	_, idx := language.MatchStrings(matcher, langCode)
	return textsByTag[supported[idx]]
}
