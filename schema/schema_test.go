package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		tag    string
		want   Intent
		wantOK bool
	}{
		{"general_inquiry", IntentGeneral, true},
		{" Specific_Inquiry ", IntentSpecificSubset, true},
		{"GREETING", IntentGreeting, true},
		{"off_topic", IntentOffTopic, true},
		{"meta_inquiry", IntentMetaInquiry, true},
		{"weather", IntentGeneral, false},
		{"", IntentGeneral, false},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, ok := ParseIntent(tt.tag)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntentRoundTripsThroughTag(t *testing.T) {
	for intent := range intentTags {
		got, ok := ParseIntent(intent.String())
		assert.True(t, ok)
		assert.Equal(t, intent, got)
	}
	assert.Equal(t, "intent(42)", Intent(42).String())
}

func TestRequiresSources(t *testing.T) {
	assert.True(t, IntentGeneral.RequiresSources())
	assert.True(t, IntentSpecificSubset.RequiresSources())
	assert.False(t, IntentGreeting.RequiresSources())
	assert.False(t, IntentOffTopic.RequiresSources())
	assert.False(t, IntentMetaInquiry.RequiresSources())
}

func TestDefaultDecision(t *testing.T) {
	d := DefaultDecision("classifier timed out")
	assert.Equal(t, IntentGeneral, d.Intent)
	assert.True(t, d.Fallback)
	assert.Empty(t, d.Targets)
	assert.Equal(t, "classifier timed out", d.Reason)
}

func TestNormalizeSourceID(t *testing.T) {
	assert.Equal(t, SourceID("cardif"), NormalizeSourceID("  CARDIF "))
	assert.Equal(t, SourceID(""), NormalizeSourceID("   "))
}
