package task

import (
	"sort"
	"time"

	"github.com/hitoshi/tablero/internal/model"
)

var epoch = time.Unix(0, 0)

// SortNewestFirst はタスクを作成日時の降順に並べ替える。
// 作成日時が不明なタスクはエポックとして扱い、末尾に並ぶ。
// 同一日時のタスクは元の順序を保つ。
func SortNewestFirst(tasks []*model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return createdAtOrEpoch(tasks[i]).After(createdAtOrEpoch(tasks[j]))
	})
}

func createdAtOrEpoch(t *model.Task) time.Time {
	if t.CreatedAt.IsZero() {
		return epoch
	}
	return t.CreatedAt
}
