// Package fixgate builds FIX messages from registered templates and routes them
// to logged-on counterparty sessions.
//
// A request names a protocol version and a message type. The gateway builds a
// fresh message from the matching template, applies caller overrides, resolves
// an Active session for the version and hands the encoded frame to that
// session's transport. Every request ends in one distinguishable Outcome.
//
// # Quick Start
//
// Register templates, register sessions, then dispatch:
//
//	codec := fixgate.NewCodec(fixgate.StandardDictionary())
//
//	reg := fixgate.NewRegistry()
//	reg.RegisterFunc("FIX.4.1", "OrderCancelRequest", func() (*fixgate.Message, error) {
//	    m := fixgate.NewMessage("F")
//	    if err := m.Set(fixgate.TagSymbol, fixgate.String("LNUX")); err != nil {
//	        return nil, err
//	    }
//	    return m, nil
//	})
//
//	router := fixgate.NewRouter(codec)
//	id := fixgate.SessionID{BeginString: "FIX.4.1", SenderCompID: "EXEC", TargetCompID: "BANZAI"}
//	router.Register(id, conn)
//
//	gw := fixgate.NewGateway(codec, reg, router)
//	res := gw.Dispatch(ctx, fixgate.Request{Version: "FIX.4.1", MessageType: "OrderCancelRequest"})
//
// # Layers
//
//   - Codec: typed field values to and from their wire form, plus whole frames
//   - Registry: (version, message type) to a factory producing a fresh Message
//   - GroupSpec and GroupBuilder: immutable repeating group instances
//   - Router: session lifecycle, resolution and serialized sends
//   - Gateway: the only entry point a request boundary needs
//
// # Field Values
//
// Values are typed: String, Int, Float, Char and Timestamp. Floats are
// fixed-point decimals that carry their scale, so a price decoded from
// "755.930" encodes back to "755.930". Timestamps are UTC with millisecond
// precision in the form 20060102-15:04:05.000.
//
// A Dictionary declares the kind of every tag. Encoding a value of another
// kind, or a value that cannot be represented (SOH in a string, a multi-byte
// char, NaN), fails with a *FieldError that matches ErrInvalidFieldValue.
//
// # Repeating Groups
//
// A GroupSpec names the count tag, the member tags (delimiter first) and any
// nested groups:
//
//	subIDs := fixgate.NewGroupSpec("NoPartySubIDs", fixgate.TagNoPartySubIDs,
//	    []fixgate.Tag{fixgate.TagPartySubID, fixgate.TagPartySubIDType})
//	parties := fixgate.NewGroupSpec("NoPartyIDs", fixgate.TagNoPartyIDs,
//	    []fixgate.Tag{fixgate.TagPartyID, fixgate.TagPartyIDSource, fixgate.TagPartyRole}, subIDs)
//
// Instances are built with a chaining builder and are immutable once built:
//
//	sub, _ := subIDs.New().Set(fixgate.TagPartySubID, fixgate.String("X")).Build()
//	party, err := parties.New().
//	    Set(fixgate.TagPartyID, fixgate.String("SCOTT")).
//	    Set(fixgate.TagPartyRole, fixgate.Int(11)).
//	    Append(sub).
//	    Build()
//	err = msg.AppendGroup(party)
//
// Setting a tag that belongs to another nesting level fails with a
// *GroupScopeError. Count fields are never set by hand; they always equal the
// number of appended instances.
//
// # Sessions
//
// Each session moves through Disconnected, LoggingOn, Active and LoggingOut.
// Transport adapters report lifecycle events to the Router (BeginLogon,
// Activate, BeginLogout, Disconnect). Resolve picks the first Active session of
// a version in registration order.
//
// Router.Send stamps BeginString, SenderCompID, TargetCompID, MsgSeqNum and
// SendingTime on a copy of the message, encodes it and calls the session's
// Connection while holding only that session's send lock. The outbound
// sequence number advances only after the connection accepts the message, so
// concurrent senders on one session observe a gapless run.
//
// A Connection returns a *RejectError for a nack; the session stays Active.
// Any other error is a connection failure and the session is moved to
// Disconnected.
//
// Two transports ship with the module. Package quickfixconn runs sessions on
// the quickfixgo engine, which then owns MsgSeqNum and SendingTime on the wire.
// Package wire writes the router's frames unchanged to a TCP peer.
//
// # Cancellation
//
// A cancelled context stops a dispatch up to the transport call with no side
// effects. Once the transport has been called the context no longer applies and
// the transport outcome is reported.
//
// # Hooks
//
// Hooks provide observability without coupling:
//
//	gw := fixgate.NewGateway(codec, reg, router,
//	    fixgate.WithOnBuild(func(ctx context.Context, key fixgate.TemplateKey) context.Context {
//	        return ctx
//	    }),
//	    fixgate.WithOnSuccess(func(ctx context.Context, key fixgate.TemplateKey, id fixgate.SessionID, seq int, d time.Duration) {
//	        // record latency
//	    }),
//	    fixgate.WithOnFailure(func(ctx context.Context, key fixgate.TemplateKey, o fixgate.Outcome, err error, d time.Duration) {
//	        // count failures by outcome
//	    }),
//	)
//
// Factories can also implement OnBuildHook, OnSuccessHook or OnFailureHook
// for template-specific behavior. Those run after the global hooks.
//
// # Outcomes
//
//   - Sent: the transport accepted the message
//   - TemplateNotFound: no template for (version, message type); no session
//     lookup is performed
//   - SessionUnavailable: no Active, logged-on session for the version
//   - TransportRejected: the transport nacked or failed; Result.Reason carries
//     its text
//   - InvalidRequest: an override names an unknown field or does not decode
//   - BuildFailed: a factory or stamp failed, or the message did not encode
//   - Cancelled: the context ended before the send
package fixgate
