package monitor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roman-kripton/pw-twin-tools/internal/scraper"
	"github.com/roman-kripton/pw-twin-tools/internal/storage"
)

const (
	barWidth  = 10
	barFilled = '█'
	barEmpty  = '░'
)

// progressBar renders a 10-cell block bar, filled proportionally and
// rounded to the nearest cell.
func progressBar(percent float64) string {
	filled := int(math.Round(percent / 100 * barWidth))
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat(string(barFilled), filled) + strings.Repeat(string(barEmpty), barWidth-filled)
}

// diffAccount compares a fresh scrape against the previous persisted
// snapshot and returns the change lines. Unchanged state produces none.
func diffAccount(prev *storage.AccountSnapshot, res *scraper.Result) []string {
	var changes []string

	prevCoins := "0"
	prevTasks := map[string][2]int{}
	if prev != nil {
		if prev.MdmCoins != "" {
			prevCoins = prev.MdmCoins
		}
		prevTasks = prev.Tasks
	}

	if res.MdmCoins != prevCoins {
		changes = append(changes, coinsChange(prevCoins, res.MdmCoins))
	}

	var taskChanges []string
	for _, t := range res.Tasks {
		before, known := prevTasks[t.Name]
		switch {
		case !known:
			taskChanges = append(taskChanges,
				fmt.Sprintf("    %s %s: %d/%d (новое)", progressBar(0), t.Name, t.Current, t.Total))
		case before[0] != t.Current || before[1] != t.Total:
			taskChanges = append(taskChanges,
				fmt.Sprintf("    %s %s: %d/%d %s",
					progressBar(t.Percent), t.Name, t.Current, t.Total, deltaSuffix(t.Current-before[0])))
		}
	}
	if len(taskChanges) > 0 {
		changes = append(changes, "📝 Задания:\n"+strings.Join(taskChanges, "\n"))
	}

	return changes
}

func coinsChange(prev, current string) string {
	prevN, errPrev := strconv.Atoi(prev)
	curN, errCur := strconv.Atoi(current)
	if errPrev != nil || errCur != nil {
		return fmt.Sprintf("💰 Монеты МДМ: %s (было %s)", current, prev)
	}

	diff := curN - prevN
	arrow := "🔽 "
	if diff > 0 {
		arrow = "🔼 +"
	}
	if diff < 0 {
		diff = -diff
	}
	return fmt.Sprintf("💰 Монеты МДМ: %s%d (%s → %s)", arrow, diff, prev, current)
}

func deltaSuffix(diff int) string {
	switch {
	case diff > 0:
		return fmt.Sprintf("(🔼 +%d)", diff)
	case diff < 0:
		return fmt.Sprintf("(%d)", diff)
	default:
		return "()"
	}
}
