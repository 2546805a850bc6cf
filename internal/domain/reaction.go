package domain

import "errors"

const (
	ReactionHandUp    = "hand-up"
	ReactionHandDown  = "hand-down"
	ReactionLike      = "like"
	ReactionClapping  = "clapping"
	ReactionHeart     = "heart"
	ReactionLaughing  = "laughing"
	ReactionSurprised = "surprised"
	ReactionDislike   = "dislike"
)

var ErrUnknownReaction = errors.New("unknown reaction")

var reactions = map[string]struct{}{
	ReactionHandUp:    {},
	ReactionHandDown:  {},
	ReactionLike:      {},
	ReactionClapping:  {},
	ReactionHeart:     {},
	ReactionLaughing:  {},
	ReactionSurprised: {},
	ReactionDislike:   {},
}

func ValidReaction(tag string) bool {
	_, ok := reactions[tag]
	return ok
}
