package engine

import "mottoparty/internal/domain"

// Assign maps every participant to a motto text. Participants are
// visited in the order given. Each participant draws from a shuffled
// pool of mottos written by somebody else; only when every motto in
// the party is their own does the pool fall back to the full set and
// a self-assignment becomes unavoidable. The first pool entry whose
// text has not already been handed out wins. When the whole pool is
// exhausted the fresh shuffle's head is taken as-is, so with more
// participants than distinct mottos the same text can go to several
// people.
func Assign(participants []string, mottos []domain.Submission, shuffle ShuffleFunc) map[string]string {
	out := make(map[string]string, len(participants))
	used := make(map[string]bool, len(mottos))
	for _, p := range participants {
		candidates := make([]domain.Submission, 0, len(mottos))
		for _, m := range mottos {
			if m.Submitter != p {
				candidates = append(candidates, m)
			}
		}
		if len(candidates) == 0 {
			candidates = mottos
		}
		pool := shuffle(candidates)
		choice := pool[0].Text
		for _, m := range pool {
			if !used[m.Text] {
				choice = m.Text
				break
			}
		}
		out[p] = choice
		used[choice] = true
	}
	return out
}
