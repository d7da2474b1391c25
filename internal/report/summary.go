package report

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"sverka/internal/providers"
)

// maxUnresolvedNames limits how many unresolved names the summary lists.
const maxUnresolvedNames = 5

func hours(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Summary renders the chat message that accompanies the report file.
// employees is the number of distinct resolved Jira users.
func Summary(rows []Row, period providers.Period, employees int) string {
	var sb strings.Builder

	sb.WriteString("📊 **Итог сверки**\n")
	fmt.Fprintf(&sb, "ℹ️ %s — %s (Сотрудников: %d)\n\n",
		period.From.Format("2006-01-02"), period.To.Format("2006-01-02"), employees)
	sb.WriteString(":al:  - Tempo > 1C\n")
	sb.WriteString(":bangbang:  - см табель\n")
	sb.WriteString("🔻  -  1C > Tempo\n\n")

	for _, team := range Teams(rows) {
		var bad []Row
		for _, r := range rows {
			if r.Team == team && r.Status == StatusVariance {
				bad = append(bad, r)
			}
		}
		if len(bad) == 0 {
			fmt.Fprintf(&sb, "📁 **%s**: ✅ Все ОК\n", team)
			continue
		}

		fmt.Fprintf(&sb, "📁 **%s**: ⚠️ Расхождений: **%d**\n", team, len(bad))
		for _, r := range bad {
			icon := ":al:"
			if r.Diff < 0 {
				icon = "🔻"
			}
			bang := ""
			if r.HasNotableAbsence() {
				bang = " :bangbang:"
			}
			absences := ""
			if len(r.AbsenceCodes) > 0 {
				absences = " (" + r.Absences() + ")"
			}
			fmt.Fprintf(&sb, "  - **%s**: 1C=`%s` | Tempo=`%s` | Diff: **%s** %s%s%s\n",
				r.Name1C, hours(r.Hours1C), hours(r.HoursTempo), hours(r.Diff), icon, bang, absences)
		}
	}

	var missing []string
	for _, r := range rows {
		if r.Status == StatusUnresolved {
			missing = append(missing, r.Name1C)
		}
	}
	if len(missing) > 0 {
		fmt.Fprintf(&sb, "\n❓ **Не найдены (%d):**\n_%s_", len(missing),
			strings.Join(missing[:min(maxUnresolvedNames, len(missing))], ", "))
		if len(missing) > maxUnresolvedNames {
			sb.WriteString("...")
		}
		sb.WriteString("\n")
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

// LeadsFor returns the sorted, distinct leads of the given teams.
func LeadsFor(teams []string, leads map[string]string) []string {
	var tagged []string
	for _, team := range teams {
		if lead, ok := leads[team]; ok && !slices.Contains(tagged, lead) {
			tagged = append(tagged, lead)
		}
	}
	slices.Sort(tagged)
	return tagged
}

// LeadsMessage is posted in the thread to tag leads of teams with variances.
func LeadsMessage(leads []string) string {
	return fmt.Sprintf("Внимание: %s — в ваших командах есть расхождения.", strings.Join(leads, ", "))
}
