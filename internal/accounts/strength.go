package accounts

type Strength struct {
	Score int    `json:"score"`
	Label string `json:"label"`
}

var strengthLabels = [...]string{"Weak", "Weak", "Fair", "Good", "Strong"}

// PasswordStrength scores a password from 0 to 4: one point each for
// length, an uppercase letter, a digit and a symbol. The empty password
// has no label.
func PasswordStrength(pw string) Strength {
	if pw == "" {
		return Strength{}
	}

	var upper, digit, symbol bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'a' && r <= 'z':
		default:
			symbol = true
		}
	}

	score := 0
	for _, ok := range []bool{len(pw) >= MinPasswordLength, upper, digit, symbol} {
		if ok {
			score++
		}
	}

	return Strength{Score: score, Label: strengthLabels[score]}
}
