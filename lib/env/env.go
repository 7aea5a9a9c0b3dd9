package env

import (
	"os"
	"strconv"
)

func Debug() bool {
	return os.Getenv("DEBUG") != ""
}

// Timeout returns the number of seconds a single tidy may run for, if TOPO_TIMEOUT is set
func Timeout() (int, bool) {
	if s := os.Getenv("TOPO_TIMEOUT"); s != "" {
		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return int(i), true
		}
	}
	return -1, false
}

// ConfigPath returns the tidy options file named by TOPO_CONFIG
func ConfigPath() string {
	return os.Getenv("TOPO_CONFIG")
}
