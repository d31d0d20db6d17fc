package view

import "github.com/hitoshi/tablero/internal/model"

// TaskLists はボードに表示する未完了・完了の2つのリスト。
type TaskLists struct {
	Pending   []*model.Task
	Completed []*model.Task
}

// SplitByStatus はタスク集合をステータスで2つのリストに分ける。
// 各リスト内の順序は入力の順序を保つ。
func SplitByStatus(tasks []*model.Task) TaskLists {
	lists := TaskLists{
		Pending:   []*model.Task{},
		Completed: []*model.Task{},
	}
	for _, t := range tasks {
		switch t.Status {
		case model.TaskStatusCompleted:
			lists.Completed = append(lists.Completed, t)
		default:
			lists.Pending = append(lists.Pending, t)
		}
	}
	return lists
}
