package authcore

import (
	"fmt"
	"strconv"
	"time"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

func lockoutMessage(remaining time.Duration) string {
	minutes := int(remaining.Minutes())
	if remaining > 0 && minutes == 0 {
		minutes = 1
	}
	return fmt.Sprintf("Account locked due to too many failed attempts. Try again in %d minute(s)", minutes)
}

func attemptsMessage(remaining int) string {
	if remaining == 1 {
		return "Invalid username or password. 1 attempt remaining before lockout"
	}
	return fmt.Sprintf("Invalid username or password. %d attempts remaining before lockout", remaining)
}
