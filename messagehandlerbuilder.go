package statetree

// Action pairs an optional diagnostic name with a side-effecting function
// run against a live HandlerContext, mirroring the teacher's
// namedAction[E]/combineActions (state.go) so multiple actions attached to
// one handler combine, in declaration order, into the Info.Actions list
// exposed for diagrams.
type Action[M, A, D, C any] struct {
	Name string
	Run  func(HandlerContext[M, A, D, C])
}

func runActions[M, A, D, C any](ctx HandlerContext[M, A, D, C], actions []Action[M, A, D, C]) {
	for _, a := range actions {
		if a.Run != nil {
			a.Run(ctx)
		}
	}
}

func actionNames[M, A, D, C any](actions []Action[M, A, D, C]) []string {
	if len(actions) == 0 {
		return nil
	}
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

// MessageHandlerBuilder is the fluent accumulator passed to an on_message /
// on_message_with_data-style desc_build callback. Exactly one terminal
// method (GoTo, GoToSelf, Stay, Unhandled, When, Handler, or the
// package-level WhenWithContext/MessageWhenResult) must be called before
// the builder is consumed; StateBuilder panics otherwise, the same way the
// teacher panics on builder misuse it can detect immediately. A is the
// ancestor data type (NoData for plain OnMessage).
type MessageHandlerBuilder[M, A, D, C any] struct {
	label    string
	metadata map[string]any
	result   *MessageHandlerDescriptor[M, A, D, C]
}

// Label sets a diagnostic label surfaced in MessageHandlerInfo.Label.
func (b *MessageHandlerBuilder[M, A, D, C]) Label(label string) *MessageHandlerBuilder[M, A, D, C] {
	b.label = label
	return b
}

// Meta attaches an opaque metadata key/value pair, passed through to
// MessageHandlerInfo.Metadata untouched.
func (b *MessageHandlerBuilder[M, A, D, C]) Meta(key string, value any) *MessageHandlerBuilder[M, A, D, C] {
	if b.metadata == nil {
		b.metadata = make(map[string]any)
	}
	b.metadata[key] = value
	return b
}

// GoTo terminates the builder with a transition to target, running actions
// (in order) first.
func (b *MessageHandlerBuilder[M, A, D, C]) GoTo(target Key, actions ...Action[M, A, D, C]) {
	b.result = &MessageHandlerDescriptor[M, A, D, C]{
		Info: MessageHandlerInfo{
			Kind: MessageHandlerGoTo, MessageType: messageTypeOf[M](),
			Actions: actionNames(actions), Label: b.label, Metadata: b.metadata,
			GoToTarget: &target,
		},
		MakeHandler: func() MessageHandlerFunc[M, A, D, C] {
			return func(ctx HandlerContext[M, A, D, C]) FutureOr[MessageOutcome] {
				runActions(ctx, actions)
				return Resolved(GoTo(target))
			}
		},
	}
}

// GoToSelf terminates the builder with a self-transition.
func (b *MessageHandlerBuilder[M, A, D, C]) GoToSelf(actions ...Action[M, A, D, C]) {
	b.result = &MessageHandlerDescriptor[M, A, D, C]{
		Info: MessageHandlerInfo{
			Kind: MessageHandlerGoToSelf, MessageType: messageTypeOf[M](),
			Actions: actionNames(actions), Label: b.label, Metadata: b.metadata,
		},
		MakeHandler: func() MessageHandlerFunc[M, A, D, C] {
			return func(ctx HandlerContext[M, A, D, C]) FutureOr[MessageOutcome] {
				runActions(ctx, actions)
				return Resolved(GoToSelf())
			}
		},
	}
}

// Stay terminates the builder by handling the message without any
// transition.
func (b *MessageHandlerBuilder[M, A, D, C]) Stay(actions ...Action[M, A, D, C]) {
	b.result = &MessageHandlerDescriptor[M, A, D, C]{
		Info: MessageHandlerInfo{
			Kind: MessageHandlerStay, MessageType: messageTypeOf[M](),
			Actions: actionNames(actions), Label: b.label, Metadata: b.metadata,
		},
		MakeHandler: func() MessageHandlerFunc[M, A, D, C] {
			return func(ctx HandlerContext[M, A, D, C]) FutureOr[MessageOutcome] {
				runActions(ctx, actions)
				return Resolved(Stay())
			}
		},
	}
}

// Unhandled terminates the builder by explicitly declining the message,
// escalating it to the parent state.
func (b *MessageHandlerBuilder[M, A, D, C]) Unhandled() {
	b.result = &MessageHandlerDescriptor[M, A, D, C]{
		Info: MessageHandlerInfo{Kind: MessageHandlerUnhandled, MessageType: messageTypeOf[M](), Label: b.label, Metadata: b.metadata},
		MakeHandler: func() MessageHandlerFunc[M, A, D, C] {
			return func(HandlerContext[M, A, D, C]) FutureOr[MessageOutcome] { return Resolved(Unhandled()) }
		},
	}
}

// Handler terminates the builder with a fully opaque, hand-written handler
// function, for cases the declarative kinds don't cover.
func (b *MessageHandlerBuilder[M, A, D, C]) Handler(label string, fn MessageHandlerFunc[M, A, D, C]) {
	b.result = &MessageHandlerDescriptor[M, A, D, C]{
		Info:        MessageHandlerInfo{Kind: MessageHandlerOpaque, MessageType: messageTypeOf[M](), Label: label, Metadata: b.metadata},
		MakeHandler: func() MessageHandlerFunc[M, A, D, C] { return fn },
	}
}

// MessageCondition is one guarded alternative in a When chain: an ordered
// predicate plus the sub-descriptor to use when it is the first to match.
type MessageCondition[M, A, D, C any] struct {
	Label     string
	Predicate func(HandlerContext[M, A, D, C]) FutureOr[bool]
	Then      func(*MessageHandlerBuilder[M, A, D, C])
}

// When terminates the builder with a guarded chain of alternatives,
// evaluated in declaration order; the first satisfied predicate's
// sub-descriptor runs, and Unhandled is reported if none match (spec.md
// 4.3's guard composition). Predicates may be asynchronous.
func (b *MessageHandlerBuilder[M, A, D, C]) When(conditions ...MessageCondition[M, A, D, C]) {
	infos := make([]ConditionInfo, len(conditions))
	subs := make([]*MessageHandlerDescriptor[M, A, D, C], len(conditions))
	for i, c := range conditions {
		sub := &MessageHandlerBuilder[M, A, D, C]{}
		c.Then(sub)
		subs[i] = sub.result
		infos[i] = ConditionInfo{Label: c.Label}
		if sub.result != nil {
			infos[i].MessageInfo = &sub.result.Info
		}
	}
	b.result = &MessageHandlerDescriptor[M, A, D, C]{
		Info: MessageHandlerInfo{
			Kind: MessageHandlerWhen, MessageType: messageTypeOf[M](),
			Conditions: infos, Label: b.label, Metadata: b.metadata,
		},
		MakeHandler: func() MessageHandlerFunc[M, A, D, C] {
			handlers := make([]MessageHandlerFunc[M, A, D, C], len(subs))
			for i, s := range subs {
				if s != nil {
					handlers[i] = s.MakeHandler()
				}
			}
			return func(ctx HandlerContext[M, A, D, C]) FutureOr[MessageOutcome] {
				return evalConditions(ctx, conditions, handlers, 0)
			}
		},
	}
}

func evalConditions[M, A, D, C any](ctx HandlerContext[M, A, D, C], conditions []MessageCondition[M, A, D, C], handlers []MessageHandlerFunc[M, A, D, C], i int) FutureOr[MessageOutcome] {
	if i >= len(conditions) {
		return Resolved(Unhandled())
	}
	return BindFutureOr(conditions[i].Predicate(ctx), func(matched bool, err error) FutureOr[MessageOutcome] {
		if err != nil {
			return Failed[MessageOutcome](err)
		}
		if matched && handlers[i] != nil {
			return handlers[i](ctx)
		}
		return evalConditions(ctx, conditions, handlers, i+1)
	})
}

// ContextCondition is one guarded alternative in a WhenWithContext chain,
// where the predicate and handler additionally observe a derived value X
// (e.g. a value looked up once per dispatch and shared across conditions).
type ContextCondition[X, M, A, D, C any] struct {
	Label     string
	Predicate func(X, HandlerContext[M, A, D, C]) bool
	Then      func(X, *MessageHandlerBuilder[M, A, D, C])
}

// WhenWithContext is the package-level form of When needed because X is a
// type parameter beyond the builder's own M, A, D, C - Go forbids generic
// methods, so this is a free function taking the builder as its first
// argument (see DESIGN.md's "Open Question: generic methods").
func WhenWithContext[X, M, A, D, C any](b *MessageHandlerBuilder[M, A, D, C], provide func(HandlerContext[M, A, D, C]) FutureOr[X], conditions ...ContextCondition[X, M, A, D, C]) {
	infos := make([]ConditionInfo, len(conditions))
	for i, c := range conditions {
		infos[i] = ConditionInfo{Label: c.Label}
	}
	b.result = &MessageHandlerDescriptor[M, A, D, C]{
		Info: MessageHandlerInfo{
			Kind: MessageHandlerWhenWithContext, MessageType: messageTypeOf[M](),
			Conditions: infos, Label: b.label, Metadata: b.metadata,
		},
		MakeHandler: func() MessageHandlerFunc[M, A, D, C] {
			return func(ctx HandlerContext[M, A, D, C]) FutureOr[MessageOutcome] {
				return BindFutureOr(provide(ctx), func(x X, err error) FutureOr[MessageOutcome] {
					if err != nil {
						return Failed[MessageOutcome](err)
					}
					for _, c := range conditions {
						if c.Predicate(x, ctx) {
							sub := &MessageHandlerBuilder[M, A, D, C]{}
							c.Then(x, sub)
							if sub.result != nil {
								return sub.result.MakeHandler()(ctx)
							}
						}
					}
					return Resolved(Unhandled())
				})
			}
		},
	}
}

// MessageWhenResult is the package-level form of a result-guarded handler
// (spec.md 4.3's "Result-guard composition"): produce yields a Result[T];
// onSuccess runs with the unwrapped T on success; onError runs on failure,
// or, if nil, the error is raised asynchronously to the executor via a
// failed FutureOr. T is a type parameter beyond the builder's own M, A, D,
// C, so this is a free function rather than a method.
func MessageWhenResult[T, M, A, D, C any](b *MessageHandlerBuilder[M, A, D, C], produce func(HandlerContext[M, A, D, C]) FutureOr[Result[T]], onSuccess func(T, HandlerContext[M, A, D, C]) FutureOr[MessageOutcome], onError func(error, HandlerContext[M, A, D, C]) FutureOr[MessageOutcome]) {
	b.result = &MessageHandlerDescriptor[M, A, D, C]{
		Info: MessageHandlerInfo{Kind: MessageHandlerWhenResult, MessageType: messageTypeOf[M](), Label: b.label, Metadata: b.metadata},
		MakeHandler: func() MessageHandlerFunc[M, A, D, C] {
			return func(ctx HandlerContext[M, A, D, C]) FutureOr[MessageOutcome] {
				return BindFutureOr(produce(ctx), func(r Result[T], err error) FutureOr[MessageOutcome] {
					if err != nil {
						if onError != nil {
							return onError(err, ctx)
						}
						return Failed[MessageOutcome](err)
					}
					if v, ok := r.Get(); ok {
						return onSuccess(v, ctx)
					}
					if onError != nil {
						return onError(r.Err(), ctx)
					}
					return Failed[MessageOutcome](r.Err())
				})
			}
		},
	}
}
