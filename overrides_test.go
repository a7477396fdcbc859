package fixgate

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type OverridesSuite struct {
	suite.Suite
}

func TestOverridesSuite(t *testing.T) {
	suite.Run(t, new(OverridesSuite))
}

func (s *OverridesSuite) TestParsesPairs() {
	got, err := ParseOverrides("ClOrdID=X1, 38=100 ,Text=a=b")

	s.Require().NoError(err)
	s.Assert().Equal(Overrides{
		{Field: "ClOrdID", Value: "X1"},
		{Field: "38", Value: "100"},
		{Field: "Text", Value: "a=b"},
	}, got)
	s.Assert().Equal("ClOrdID=X1,38=100,Text=a=b", got.String())
}

func (s *OverridesSuite) TestSkipsEmptyEntries() {
	got, err := ParseOverrides(",,ClOrdID=X1,")

	s.Require().NoError(err)
	s.Assert().Len(got, 1)

	got, err = ParseOverrides("")
	s.Require().NoError(err)
	s.Assert().Empty(got)
}

func (s *OverridesSuite) TestRejectsBadPairs() {
	for _, in := range []string{"ClOrdID", "=X1", "ClOrdID=", " = "} {
		_, err := ParseOverrides(in)
		s.Assert().ErrorIs(err, ErrInvalidOverride, in)
	}
}

func (s *OverridesSuite) TestJSONKeepsOrderAndNumberText() {
	got, err := ParseOverridesJSON([]byte(`{"Price": 755.930, "ClOrdID": "X1", "38": 100}`))

	s.Require().NoError(err)
	s.Assert().Equal(Overrides{
		{Field: "Price", Value: "755.930"},
		{Field: "ClOrdID", Value: "X1"},
		{Field: "38", Value: "100"},
	}, got)
}

func (s *OverridesSuite) TestJSONRejectsInvalidInput() {
	_, err := ParseOverridesJSON([]byte(`{not valid}`))
	s.Assert().ErrorIs(err, ErrInvalidJSON)

	_, err = ParseOverridesJSON([]byte{})
	s.Assert().ErrorIs(err, ErrInvalidJSON)

	_, err = ParseOverridesJSON([]byte(`["ClOrdID"]`))
	s.Assert().ErrorIs(err, ErrInvalidJSON)
}

func (s *OverridesSuite) TestJSONRejectsNonScalarValues() {
	for _, in := range []string{`{"ClOrdID": true}`, `{"ClOrdID": null}`, `{"ClOrdID": {"a": 1}}`, `{"ClOrdID": ""}`} {
		_, err := ParseOverridesJSON([]byte(in))
		s.Assert().ErrorIs(err, ErrInvalidOverride, in)
	}
}
