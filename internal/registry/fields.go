package registry

import (
	"strconv"
	"strings"

	"github.com/albapepper/scoracle-fusion/internal/source"
)

// Field names a canonical identity attribute.
type Field string

const (
	FieldDisplayName    Field = "display_name"
	FieldDateOfBirth    Field = "date_of_birth"
	FieldNationality    Field = "nationality"
	FieldPosition       Field = "position"
	FieldPreferredFoot  Field = "preferred_foot"
	FieldHeightCM       Field = "height_cm"
	FieldWeightKG       Field = "weight_kg"
	FieldCurrentClub    Field = "current_club"
	FieldMarketValue    Field = "market_value"
	FieldMarketValueEUR Field = "market_value_eur"
	FieldContractExpiry Field = "contract_expiry"
	FieldAgent          Field = "agent"
	FieldJerseyNumber   Field = "jersey_number"
)

// Fields lists every attribute in storage column order.
var Fields = []Field{
	FieldDisplayName,
	FieldDateOfBirth,
	FieldNationality,
	FieldPosition,
	FieldPreferredFoot,
	FieldHeightCM,
	FieldWeightKG,
	FieldCurrentClub,
	FieldMarketValue,
	FieldMarketValueEUR,
	FieldContractExpiry,
	FieldAgent,
	FieldJerseyNumber,
}

// MarketFields are the Transfermarkt-owned context fields exposed on the
// fused view.
var MarketFields = []Field{
	FieldMarketValue,
	FieldMarketValueEUR,
	FieldContractExpiry,
	FieldCurrentClub,
	FieldAgent,
}

// ParseField accepts a field name as written in the policy file.
func ParseField(s string) (Field, bool) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Fields {
		if known == f {
			return f, true
		}
	}
	return "", false
}

// attributeKeys lists the raw attribute spellings each provider uses for a
// field. Display name is taken from Record.RawName instead.
var attributeKeys = map[Field][]string{
	FieldDateOfBirth:    {"date_of_birth", "birth_date", "dob"},
	FieldNationality:    {"nationality", "country", "citizenship"},
	FieldPosition:       {"position", "primary_position", "player_position"},
	FieldPreferredFoot:  {"preferred_foot", "foot"},
	FieldHeightCM:       {"height_cm", "height"},
	FieldWeightKG:       {"weight_kg", "weight"},
	FieldCurrentClub:    {"current_club", "club", "team_name"},
	FieldMarketValue:    {"market_value"},
	FieldMarketValueEUR: {"market_value_eur", "market_value_in_eur"},
	FieldContractExpiry: {"contract_expiry", "contract_expires", "contract_until"},
	FieldAgent:          {"agent", "player_agent"},
	FieldJerseyNumber:   {"jersey_number", "shirt_number", "number"},
}

// recordValue reads field f from rec, "" when the record does not carry it.
func recordValue(rec source.Record, f Field) string {
	if f == FieldDisplayName {
		return strings.TrimSpace(rec.RawName)
	}
	if v, ok := source.FirstValue(rec.Attributes, attributeKeys[f]...); ok {
		if s := source.ExtractString(v); s != "" {
			return s
		}
	}
	// Transfermarkt hands out labels like "25,00 M €"; derive the number.
	if f == FieldMarketValueEUR {
		if v, ok := source.FirstValue(rec.Attributes, attributeKeys[FieldMarketValue]...); ok {
			if eur, ok := source.ParseMarketValue(source.ExtractString(v)); ok {
				return strconv.FormatFloat(eur, 'f', 0, 64)
			}
		}
	}
	return ""
}

// FieldPriority ranks sources per field. Earlier sources win; a source not
// listed for a field ranks below every listed one.
type FieldPriority map[Field][]source.Source

// DefaultFieldPriority prefers StatsBomb for identity fields and
// Transfermarkt for commercial ones.
func DefaultFieldPriority() FieldPriority {
	sb, sc, tm := source.StatsBomb, source.SkillCorner, source.Transfermarkt
	return FieldPriority{
		FieldDisplayName:    {sb, tm, sc},
		FieldDateOfBirth:    {sb, tm, sc},
		FieldNationality:    {sb, tm, sc},
		FieldPosition:       {sb, sc, tm},
		FieldPreferredFoot:  {sb, tm, sc},
		FieldHeightCM:       {sb, sc, tm},
		FieldWeightKG:       {sb, sc, tm},
		FieldCurrentClub:    {tm, sb, sc},
		FieldMarketValue:    {tm},
		FieldMarketValueEUR: {tm},
		FieldContractExpiry: {tm},
		FieldAgent:          {tm},
		FieldJerseyNumber:   {tm, sb, sc},
	}
}

// Rank returns the position of src in f's list.
func (p FieldPriority) Rank(f Field, src source.Source) int {
	list := p[f]
	for i, s := range list {
		if s == src {
			return i
		}
	}
	return len(list)
}

// Wins reports whether a write by challenger replaces a value written by
// holder. Same-source writes always refresh.
func (p FieldPriority) Wins(f Field, challenger, holder source.Source) bool {
	if challenger == holder {
		return true
	}
	return p.Rank(f, challenger) < p.Rank(f, holder)
}
