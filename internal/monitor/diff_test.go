package monitor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kripton/pw-twin-tools/internal/scraper"
	"github.com/roman-kripton/pw-twin-tools/internal/storage"
)

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "░░░░░░░░░░", progressBar(0))
	assert.Equal(t, "█████░░░░░", progressBar(50))
	assert.Equal(t, "██████████", progressBar(100))
	assert.Equal(t, "███░░░░░░░", progressBar(33.3))
	assert.Equal(t, "████░░░░░░", progressBar(35))

	// Out-of-range values clamp instead of panicking
	assert.Equal(t, "░░░░░░░░░░", progressBar(-20))
	assert.Equal(t, "██████████", progressBar(250))
}

func task(name string, current, total int, percent float64) storage.TaskProgress {
	return storage.TaskProgress{
		Name:      name,
		Current:   current,
		Total:     total,
		Percent:   percent,
		Timestamp: time.Now(),
	}
}

func TestDiffAccountTaskAdvanced(t *testing.T) {
	prev := &storage.AccountSnapshot{
		Account: storage.Account{Username: "alice", MdmCoins: "120"},
		Tasks:   map[string][2]int{"Ежедневный вход": {3, 10}},
	}
	res := &scraper.Result{
		Username: "alice",
		MdmCoins: "120",
		Tasks:    []storage.TaskProgress{task("Ежедневный вход", 5, 10, 50)},
	}

	changes := diffAccount(prev, res)
	require.Len(t, changes, 1)
	assert.Contains(t, changes[0], "📝 Задания:")
	assert.Contains(t, changes[0], "█████░░░░░ Ежедневный вход: 5/10 (🔼 +2)")
}

func TestDiffAccountNewTask(t *testing.T) {
	prev := &storage.AccountSnapshot{
		Account: storage.Account{Username: "alice", MdmCoins: "0"},
		Tasks:   map[string][2]int{},
	}
	res := &scraper.Result{
		Username: "alice",
		MdmCoins: "0",
		Tasks:    []storage.TaskProgress{task("Победы на арене", 1, 3, 33.3)},
	}

	changes := diffAccount(prev, res)
	require.Len(t, changes, 1)
	assert.Contains(t, changes[0], "░░░░░░░░░░ Победы на арене: 1/3 (новое)")
}

func TestDiffAccountUnchanged(t *testing.T) {
	prev := &storage.AccountSnapshot{
		Account: storage.Account{Username: "alice", MdmCoins: "120"},
		Tasks:   map[string][2]int{"Ежедневный вход": {5, 10}},
	}
	res := &scraper.Result{
		Username: "alice",
		MdmCoins: "120",
		Tasks:    []storage.TaskProgress{task("Ежедневный вход", 5, 10, 50)},
	}

	assert.Empty(t, diffAccount(prev, res))
}

func TestDiffAccountCoins(t *testing.T) {
	prev := &storage.AccountSnapshot{
		Account: storage.Account{Username: "alice", MdmCoins: "100"},
		Tasks:   map[string][2]int{},
	}

	changes := diffAccount(prev, &scraper.Result{Username: "alice", MdmCoins: "150"})
	require.Len(t, changes, 1)
	assert.Equal(t, "💰 Монеты МДМ: 🔼 +50 (100 → 150)", changes[0])

	changes = diffAccount(prev, &scraper.Result{Username: "alice", MdmCoins: "80"})
	require.Len(t, changes, 1)
	assert.Equal(t, "💰 Монеты МДМ: 🔽 20 (100 → 80)", changes[0])

	// A non-numeric balance still produces a readable line
	changes = diffAccount(prev, &scraper.Result{Username: "alice", MdmCoins: "много"})
	require.Len(t, changes, 1)
	assert.Equal(t, "💰 Монеты МДМ: много (было 100)", changes[0])
}

func TestDiffAccountFirstCheck(t *testing.T) {
	res := &scraper.Result{
		Username: "bob",
		MdmCoins: "40",
		Tasks:    []storage.TaskProgress{task("Ежедневный вход", 1, 10, 10)},
	}

	changes := diffAccount(nil, res)
	require.Len(t, changes, 2)
	assert.True(t, strings.HasPrefix(changes[0], "💰"))
	assert.Contains(t, changes[1], "(новое)")
}
