package fixgate

// Matcher selects sessions by identity. Matchers are cheap and compose with
// And and Or.
type Matcher interface {
	Match(id SessionID) bool
}

// VersionIs matches sessions whose BeginString equals version.
func VersionIs(version string) Matcher {
	return versionIs{version: version}
}

type versionIs struct {
	version string
}

func (m versionIs) Match(id SessionID) bool { return id.BeginString == m.version }

// SenderIs matches sessions whose SenderCompID equals sender.
func SenderIs(sender string) Matcher {
	return senderIs{sender: sender}
}

type senderIs struct {
	sender string
}

func (m senderIs) Match(id SessionID) bool { return id.SenderCompID == m.sender }

// TargetIs matches sessions whose TargetCompID equals target.
func TargetIs(target string) Matcher {
	return targetIs{target: target}
}

type targetIs struct {
	target string
}

func (m targetIs) Match(id SessionID) bool { return id.TargetCompID == m.target }

// And returns a Matcher that matches when all matchers match.
func And(ms ...Matcher) Matcher {
	return and{ms: ms}
}

type and struct {
	ms []Matcher
}

func (m and) Match(id SessionID) bool {
	for _, x := range m.ms {
		if !x.Match(id) {
			return false
		}
	}
	return true
}

// Or returns a Matcher that matches when any matcher matches.
func Or(ms ...Matcher) Matcher {
	return or{ms: ms}
}

type or struct {
	ms []Matcher
}

func (m or) Match(id SessionID) bool {
	for _, x := range m.ms {
		if x.Match(id) {
			return true
		}
	}
	return false
}
