package store

import "strings"

// matchParticipants decide se uma linha armazenada casa com os fragmentos
// de nome informados: qualquer participante que seja substring (case
// insensitive) dos fragmentos concatenados, ou o contrário.
// Heurística propositalmente frouxa: nomes curtos ou sobrepostos podem gerar
// falso positivo, e não há desempate por proximidade de commence_time.
func matchParticipants(participants []string, fragments []string) bool {
	joined := strings.ToLower(strings.TrimSpace(strings.Join(fragments, " ")))
	if joined == "" {
		return false
	}

	for _, p := range participants {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "" {
			continue
		}
		if strings.Contains(joined, name) || strings.Contains(name, joined) {
			return true
		}
	}
	return false
}
