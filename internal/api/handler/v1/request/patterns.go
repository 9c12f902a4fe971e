package request

import (
	"errors"

	"github.com/dlclark/regexp2"
	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	// ISO 4217 alphabetic code.
	currencyPattern = `^[A-Z]{3}$`
	// Gate labels are short slugs that neither start nor end with a dash.
	gatePattern = `^(?!-)[A-Za-z0-9-]{1,32}(?<!-)$`
)

var (
	currencyExp = regexp2.MustCompile(currencyPattern, regexp2.None)
	gateExp     = regexp2.MustCompile(gatePattern, regexp2.None)

	errInvalidCurrency = errors.New("must be an upper-case ISO 4217 code")
	errInvalidGate     = errors.New("must be 1-32 letters, digits or inner dashes")
)

func matches(exp *regexp2.Regexp, err error) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		ok, matchErr := exp.MatchString(s)
		if matchErr != nil || !ok {
			return err
		}
		return nil
	})
}

var (
	isCurrency = matches(currencyExp, errInvalidCurrency)
	isGate     = matches(gateExp, errInvalidGate)
)
