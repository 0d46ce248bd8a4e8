package shortener

import "slices"

// Option overrides a setting for a single call.
type Option func(*callOptions)

type callOptions struct {
	domains        []string
	domainsSet     bool
	skipCheck      *bool
	tags           []string
	tagsSet        bool
	additionalTags []string
	groupID        *string
}

// WithDomains replaces the allow-listed domains for this call.
func WithDomains(domains ...string) Option {
	return func(o *callOptions) {
		o.domains = domains
		o.domainsSet = true
	}
}

// WithSkipReachabilityCheck overrides Settings.SkipReachabilityCheck for this call.
func WithSkipReachabilityCheck(skip bool) Option {
	return func(o *callOptions) {
		o.skipCheck = &skip
	}
}

// WithTags replaces Settings.DefaultTags for this call. The two never combine.
func WithTags(tags ...string) Option {
	return func(o *callOptions) {
		o.tags = tags
		o.tagsSet = true
	}
}

// WithAdditionalTags appends tags on top of the default or explicit tags.
func WithAdditionalTags(tags ...string) Option {
	return func(o *callOptions) {
		o.additionalTags = append(o.additionalTags, tags...)
	}
}

// WithGroupID overrides Settings.ProviderGroupID for this call.
func WithGroupID(id string) Option {
	return func(o *callOptions) {
		o.groupID = &id
	}
}

func buildCallOptions(opts []Option) callOptions {
	var o callOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// effectiveTags picks the base tag set and appends additional tags.
// Duplicates are dropped, first occurrence wins.
func effectiveTags(defaults []string, o callOptions) []string {
	base := defaults
	if o.tagsSet {
		base = o.tags
	}

	tags := make([]string, 0, len(base)+len(o.additionalTags))
	for _, t := range slices.Concat(base, o.additionalTags) {
		if t != "" && !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	return tags
}
