package services

import "gamechannels/domain/entities"

// AggregateActivities converts a presence snapshot into a mapping from
// activity name to the members currently exhibiting it. Automated accounts
// and members reporting no activity are excluded.
func AggregateActivities(presences []entities.MemberPresence) map[string][]int64 {
	activities := make(map[string][]int64)
	for _, p := range presences {
		if p.Bot || p.Activity == "" {
			continue
		}
		activities[p.Activity] = append(activities[p.Activity], p.UserID)
	}
	return activities
}
