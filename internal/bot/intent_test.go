package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeIntent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  string
		want bool
	}{
		{"question about the time", "Que horas são?", true},
		{"hora atual", "Me diga a hora atual", true},
		{"case insensitive", "QUE HORAS SÃO", true},
		{"history question", "Quem foi Dom Pedro II?", false},
		{"hora alone is not enough", "Chegou a hora da revolução?", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, timeIntent(tt.msg))
		})
	}
}

func TestWeatherIntent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		msg          string
		wantLocation string
		wantOK       bool
	}{
		{"tempo with location", "Como está o tempo em Curitiba?", "Curitiba", true},
		{"clima with location", "Qual o clima em São Paulo hoje", "São Paulo hoje", true},
		{"location stops at comma", "clima em Lisboa, Portugal", "Lisboa", true},
		{"keyword without location", "Como está o clima?", "", false},
		{"location without keyword", "Moro em Curitiba", "", false},
		{"plain history question", "Fale sobre a Revolução Francesa", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			location, ok := weatherIntent(tt.msg)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantLocation, location)
		})
	}
}
