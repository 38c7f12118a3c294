package usecase

import (
	"sort"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
)

// mergeMessages concatenates current and incoming, sorts by (CreatedAt, ID)
// and collapses runs of equal ids in one pass. The sort is stable, so the
// copy already in current wins over an incoming duplicate.
func mergeMessages(current models.MessageList, incoming []models.Message) models.MessageList {
	all := make(models.MessageList, 0, len(current)+len(incoming))
	all = append(all, current...)
	all = append(all, incoming...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Less(all[j])
	})

	out := all[:0]
	for i := range all {
		if len(out) > 0 && out[len(out)-1].ID == all[i].ID {
			continue
		}
		out = append(out, all[i])
	}
	return out
}

// replaceMessage swaps in msg where its id is present. It reports false and
// returns the list untouched otherwise.
func replaceMessage(list models.MessageList, msg models.Message) (models.MessageList, bool) {
	idx := list.IndexOf(msg.ID)
	if idx < 0 {
		return list, false
	}
	out := list.Clone()
	out[idx] = msg
	if msg.CreatedAt != list[idx].CreatedAt {
		return mergeMessages(nil, out), true
	}
	return out, true
}

func removeMessage(list models.MessageList, id int64) (models.MessageList, bool) {
	idx := list.IndexOf(id)
	if idx < 0 {
		return list, false
	}
	out := make(models.MessageList, 0, len(list)-1)
	out = append(out, list[:idx]...)
	out = append(out, list[idx+1:]...)
	return out, true
}
