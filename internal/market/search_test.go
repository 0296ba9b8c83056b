package market

import (
	"testing"

	"github.com/astrbot-devs/console-go/internal/models"
)

func TestTrimName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"astrbot_plugin_weather", "weather"},
		{"Astrbot_Plugin_Weather", "weather"},
		{"astrbot_weather", "weather"},
		{"astrbot-weather", "weather"},
		// The long prefix wins over the short one it contains.
		{"astrbot_plugin_", ""},
		{"weather_tool", "weather_tool"},
		{"WeatherTool", "WeatherTool"},
	}

	for _, tc := range cases {
		if got := trimName(tc.in); got != tc.want {
			t.Errorf("trimName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPinyinForms(t *testing.T) {
	if got := pinyinTexts("天气插件"); len(got) == 0 || got[0] != "tianqichajian" {
		t.Errorf("pinyinTexts = %v, want primary %q", got, "tianqichajian")
	}
	if got := pinyinInitials("天气插件"); len(got) == 0 || got[0] != "tqcj" {
		t.Errorf("pinyinInitials = %v, want primary %q", got, "tqcj")
	}
	// Mixed Han/ASCII names keep their ASCII runes.
	if got := pinyinTexts("天气Bot"); len(got) == 0 || got[0] != "tianqibot" {
		t.Errorf("pinyinTexts mixed = %v, want primary %q", got, "tianqibot")
	}
	// Polyphones expand to every reading.
	if got := pinyinTexts("音乐"); !containsReading(got, "yinyue") || !containsReading(got, "yinle") {
		t.Errorf("pinyinTexts polyphone = %v, want both %q and %q", got, "yinyue", "yinle")
	}
}

func containsReading(readings []string, want string) bool {
	for _, r := range readings {
		if r == want {
			return true
		}
	}
	return false
}

func TestMatches(t *testing.T) {
	p := &models.MarketPlugin{
		Name:        "astrbot_plugin_weather",
		DisplayName: "天气助手",
		Desc:        "Weather forecasts",
		Author:      "alice",
	}
	p.TrimmedName = trimName(p.Name)
	p.SearchIndex = buildSearchIndex(p)

	for _, query := range []string{"weather", "WEATHER", "天气", "tianqi", "tqzs", "alice", ""} {
		if !Matches(p, query) {
			t.Errorf("expected %q to match", query)
		}
	}
	for _, query := range []string{"music", "bob"} {
		if Matches(p, query) {
			t.Errorf("expected %q not to match", query)
		}
	}
}

func TestMatchesWithoutIndex(t *testing.T) {
	p := &models.MarketPlugin{Name: "音乐插件"}
	if !Matches(p, "yinyue") {
		t.Error("expected phonetic fallback match without a prebuilt index")
	}

	p.SearchIndex = buildSearchIndex(p)
	if !Matches(p, "yinyue") {
		t.Error("expected phonetic match through the prebuilt index")
	}
}
