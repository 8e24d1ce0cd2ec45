package core

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// ISODateLayout is the wire format for calendar dates.
const ISODateLayout = "2006-01-02"

const (
	MaxTitleLength    = 200
	MinPasswordLength = 8
)

type (
	// Date is a calendar date in the caller's local zone. It is stored at
	// midnight UTC so two dates compare equal regardless of zone.
	Date struct {
		time.Time
	}

	User struct {
		ID           int64
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	Habit struct {
		ID        int64
		UserID    int64
		Title     string
		CreatedAt time.Time
	}

	// HabitEntry is one day of one habit. UserID duplicates the habit owner
	// and is zero on rows written without it.
	HabitEntry struct {
		ID        int64
		HabitID   int64
		UserID    int64
		Date      Date
		Completed bool
	}

	JournalEntry struct {
		ID     int64
		UserID int64
		Date   Date
		Text   string
	}

	// EntryKey identifies the entry to fetch or create. A zero UserID
	// creates the row without the denormalized owner.
	EntryKey struct {
		HabitID int64
		UserID  int64
		Date    Date
	}
)

var (
	ErrEmptyTitle    = errors.New("title is required")
	ErrTitleTooLong  = fmt.Errorf("title too long (max %d characters)", MaxTitleLength)
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrShortPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseISODate parses a YYYY-MM-DD string.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse(ISODateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{Time: t}, nil
}

// String returns the ISO representation.
func (d Date) String() string {
	return d.Format(ISODateLayout)
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// SameMonth reports whether both dates fall in the same year and month.
func (d Date) SameMonth(other Date) bool {
	return d.Year() == other.Year() && d.Month() == other.Month()
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysInMonth returns the number of days of the given month, 0 for an invalid month.
func DaysInMonth(year, month int) int {
	if month < 1 || month > 12 {
		return 0
	}
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthBounds returns the first and last day of a month.
func MonthBounds(year, month int) (Date, Date) {
	return NewDate(year, month, 1), NewDate(year, month, DaysInMonth(year, month))
}

// MonthLabel formats a month as YYYY-MM.
func MonthLabel(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// NormalizeTitle trims a habit title and validates its length.
func NormalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	if len([]rune(title)) > MaxTitleLength {
		return "", ErrTitleTooLong
	}
	return title, nil
}

// NormalizeEmail lowercases and validates an email address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.Index(email, "@")+1:], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// ValidatePassword checks the minimum password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrShortPassword
	}
	return nil
}
