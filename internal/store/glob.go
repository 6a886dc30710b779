package store

import "github.com/bmatcuk/doublestar/v4"

// globCompat matches name against a doublestar glob pattern.
func globCompat(pattern, name string) (bool, error) {
	return doublestar.Match(pattern, name)
}
