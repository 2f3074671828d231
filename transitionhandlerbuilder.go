package statetree

import "reflect"

// TransitionAction pairs an optional diagnostic name with a side-effecting
// function run against a live TransitionContext, mirroring Action for
// message handlers.
type TransitionAction[A, D, C any] struct {
	Name string
	Run  func(TransitionContext[A, D, C])
}

func runTransitionActions[A, D, C any](ctx TransitionContext[A, D, C], actions []TransitionAction[A, D, C]) {
	for _, a := range actions {
		if a.Run != nil {
			a.Run(ctx)
		}
	}
}

func transitionActionNames[A, D, C any](actions []TransitionAction[A, D, C]) []string {
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

// TransitionHandlerBuilder is the fluent accumulator passed to an
// on_enter / on_exit-style desc_build callback.
type TransitionHandlerBuilder[A, D, C any] struct {
	label    string
	metadata map[string]any
	result   *TransitionHandlerDescriptor[A, D, C]
}

// Label sets a diagnostic label surfaced in TransitionHandlerInfo.Label.
func (b *TransitionHandlerBuilder[A, D, C]) Label(label string) *TransitionHandlerBuilder[A, D, C] {
	b.label = label
	return b
}

// Meta attaches an opaque metadata key/value pair.
func (b *TransitionHandlerBuilder[A, D, C]) Meta(key string, value any) *TransitionHandlerBuilder[A, D, C] {
	if b.metadata == nil {
		b.metadata = make(map[string]any)
	}
	b.metadata[key] = value
	return b
}

// Run terminates the builder with a side-effecting action list and no data
// update - the common case for plain entry/exit actions.
func (b *TransitionHandlerBuilder[A, D, C]) Run(actions ...TransitionAction[A, D, C]) {
	b.result = &TransitionHandlerDescriptor[A, D, C]{
		Info: TransitionHandlerInfo{Kind: TransitionHandlerRun, Actions: transitionActionNames(actions), Label: b.label, Metadata: b.metadata},
		MakeHandler: func() TransitionHandlerFunc[A, D, C] {
			return func(ctx TransitionContext[A, D, C]) FutureOr[TransitionOutcome[D]] {
				runTransitionActions(ctx, actions)
				return Resolved(TransitionOutcome[D]{})
			}
		},
	}
}

// UpdateData terminates the builder by replacing the state's own data with
// the value update computes. D is already one of the builder's own type
// parameters, so - unlike Post/Schedule/WhenResult - this can stay a
// method.
func (b *TransitionHandlerBuilder[A, D, C]) UpdateData(update func(TransitionContext[A, D, C]) D) {
	var zero D
	b.result = &TransitionHandlerDescriptor[A, D, C]{
		Info: TransitionHandlerInfo{Kind: TransitionHandlerUpdateData, UpdateDataType: reflect.TypeOf(zero), Label: b.label, Metadata: b.metadata},
		MakeHandler: func() TransitionHandlerFunc[A, D, C] {
			return func(ctx TransitionContext[A, D, C]) FutureOr[TransitionOutcome[D]] {
				return Resolved(TransitionOutcome[D]{HasUpdate: true, Data: update(ctx)})
			}
		},
	}
}

// TransitionConditionThen is the side of a guarded transition alternative
// built once its predicate matches.
type TransitionConditionThen[A, D, C any] func(*TransitionHandlerBuilder[A, D, C])

// TransitionCondition is one guarded alternative in a When chain.
type TransitionCondition[A, D, C any] struct {
	Label     string
	Predicate func(TransitionContext[A, D, C]) FutureOr[bool]
	Then      TransitionConditionThen[A, D, C]
}

// When terminates the builder with a guarded chain of alternatives,
// evaluated in declaration order; if none match, the transition handler
// degenerates to a no-op Run (entry/exit handlers have no "unhandled"
// concept - only message handlers escalate to the parent).
func (b *TransitionHandlerBuilder[A, D, C]) When(conditions ...TransitionCondition[A, D, C]) {
	infos := make([]ConditionInfo, len(conditions))
	subs := make([]*TransitionHandlerDescriptor[A, D, C], len(conditions))
	for i, c := range conditions {
		sub := &TransitionHandlerBuilder[A, D, C]{}
		c.Then(sub)
		subs[i] = sub.result
		infos[i] = ConditionInfo{Label: c.Label}
		if sub.result != nil {
			infos[i].TransitionInfo = &sub.result.Info
		}
	}
	b.result = &TransitionHandlerDescriptor[A, D, C]{
		Info: TransitionHandlerInfo{Kind: TransitionHandlerWhen, Conditions: infos, Label: b.label, Metadata: b.metadata},
		MakeHandler: func() TransitionHandlerFunc[A, D, C] {
			handlers := make([]TransitionHandlerFunc[A, D, C], len(subs))
			for i, s := range subs {
				if s != nil {
					handlers[i] = s.MakeHandler()
				}
			}
			return func(ctx TransitionContext[A, D, C]) FutureOr[TransitionOutcome[D]] {
				return evalTransitionConditions(ctx, conditions, handlers, 0)
			}
		},
	}
}

func evalTransitionConditions[A, D, C any](ctx TransitionContext[A, D, C], conditions []TransitionCondition[A, D, C], handlers []TransitionHandlerFunc[A, D, C], i int) FutureOr[TransitionOutcome[D]] {
	if i >= len(conditions) {
		return Resolved(TransitionOutcome[D]{})
	}
	return BindFutureOr(conditions[i].Predicate(ctx), func(matched bool, err error) FutureOr[TransitionOutcome[D]] {
		if err != nil {
			return Failed[TransitionOutcome[D]](err)
		}
		if matched && handlers[i] != nil {
			return handlers[i](ctx)
		}
		return evalTransitionConditions(ctx, conditions, handlers, i+1)
	})
}

// Post is the package-level form of a post-message transition handler
// (spec.md 4.3's "post" kind): M, the posted message's type, is a type
// parameter beyond the builder's own A, D, C.
func Post[M, A, D, C any](b *TransitionHandlerBuilder[A, D, C], produce func(TransitionContext[A, D, C]) M, actions ...TransitionAction[A, D, C]) {
	b.result = &TransitionHandlerDescriptor[A, D, C]{
		Info: TransitionHandlerInfo{
			Kind: TransitionHandlerPost, PostMessageType: messageTypeOf[M](),
			Actions: transitionActionNames(actions), Label: b.label, Metadata: b.metadata,
		},
		MakeHandler: func() TransitionHandlerFunc[A, D, C] {
			return func(ctx TransitionContext[A, D, C]) FutureOr[TransitionOutcome[D]] {
				_ = produce(ctx) // the executor is responsible for actually posting the message
				runTransitionActions(ctx, actions)
				return Resolved(TransitionOutcome[D]{})
			}
		},
	}
}

// Schedule is the package-level form of a scheduled-post transition handler
// (spec.md 4.3's "schedule" kind). Scheduled posts must be cancelled
// implicitly when the owning state is exited; the core only describes the
// kind, the external runtime enforces cancellation (spec.md 5).
func Schedule[M, A, D, C any](b *TransitionHandlerBuilder[A, D, C], delay func(TransitionContext[A, D, C]) any, produce func(TransitionContext[A, D, C]) M) {
	b.result = &TransitionHandlerDescriptor[A, D, C]{
		Info: TransitionHandlerInfo{Kind: TransitionHandlerSchedule, PostMessageType: messageTypeOf[M](), Label: b.label, Metadata: b.metadata},
		MakeHandler: func() TransitionHandlerFunc[A, D, C] {
			return func(ctx TransitionContext[A, D, C]) FutureOr[TransitionOutcome[D]] {
				_ = delay(ctx)
				_ = produce(ctx)
				return Resolved(TransitionOutcome[D]{})
			}
		},
	}
}

// TransitionWhenResult is the package-level form of a result-guarded
// transition handler, parallel to MessageWhenResult.
func TransitionWhenResult[T, A, D, C any](b *TransitionHandlerBuilder[A, D, C], produce func(TransitionContext[A, D, C]) FutureOr[Result[T]], onSuccess func(T, TransitionContext[A, D, C]) FutureOr[TransitionOutcome[D]], onError func(error, TransitionContext[A, D, C]) FutureOr[TransitionOutcome[D]]) {
	b.result = &TransitionHandlerDescriptor[A, D, C]{
		Info: TransitionHandlerInfo{Kind: TransitionHandlerWhenResult, Label: b.label, Metadata: b.metadata},
		MakeHandler: func() TransitionHandlerFunc[A, D, C] {
			return func(ctx TransitionContext[A, D, C]) FutureOr[TransitionOutcome[D]] {
				return BindFutureOr(produce(ctx), func(r Result[T], err error) FutureOr[TransitionOutcome[D]] {
					if err != nil {
						if onError != nil {
							return onError(err, ctx)
						}
						return Failed[TransitionOutcome[D]](err)
					}
					if v, ok := r.Get(); ok {
						return onSuccess(v, ctx)
					}
					if onError != nil {
						return onError(r.Err(), ctx)
					}
					return Failed[TransitionOutcome[D]](r.Err())
				})
			}
		},
	}
}
