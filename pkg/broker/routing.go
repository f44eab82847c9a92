package broker

import "strings"

// MatchRoutingKey applies topic-exchange binding rules: words are dot separated, `*`
// matches exactly one word and `#` matches zero or more.
func MatchRoutingKey(pattern, key string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(key); i++ {
			if matchWords(pattern[1:], key[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(key) > 0 && matchWords(pattern[1:], key[1:])
	default:
		return len(key) > 0 && pattern[0] == key[0] && matchWords(pattern[1:], key[1:])
	}
}
