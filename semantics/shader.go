// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package semantics

import (
	"errors"
	"fmt"
)

// ErrDuplicateSemantic is returned when a parameter, alias or lookup texture
// name is declared twice or shadows a builtin name.
var ErrDuplicateSemantic = errors.New("semantics: duplicate semantic name")

// ShaderSemantics maps uniform and texture names to their roles. It is built
// once per preset and is read-only afterwards, so it may be shared by
// goroutines compiling different passes.
type ShaderSemantics struct {
	UniformSemantics map[string]UniformSemantic
	TextureSemantics map[string]Semantic[TextureSemantic]
}

// Uniform resolves a uniform member name.
func (s *ShaderSemantics) Uniform(name string) (UniformSemantic, bool) {
	if u, ok := parseBuiltinUniform(name); ok {
		return u, true
	}
	u, ok := s.UniformSemantics[name]
	return u, ok
}

// Texture resolves a texture binding name.
func (s *ShaderSemantics) Texture(name string) (Semantic[TextureSemantic], bool) {
	if t, ok := parseBuiltinTexture(name); ok {
		return t, true
	}
	t, ok := s.TextureSemantics[name]
	return t, ok
}

// PassInfo is the per-pass input of Build.
type PassInfo struct {
	// Alias names the pass output; empty means no alias.
	Alias string
	// Parameters lists the parameter ids declared by the pass shader.
	Parameters []string
}

// Build merges pass parameters, pass aliases and lookup texture names into a
// ShaderSemantics.
//
// A pass alias A at index i yields the texture names A (PassOutput[i]) and
// AFeedback (PassFeedback[i]) and the uniform names ASize and AFeedbackSize.
// A lookup texture N at index i yields N (User[i]) and NSize.
func Build(passes []PassInfo, luts []string) (*ShaderSemantics, error) {
	s := &ShaderSemantics{
		UniformSemantics: make(map[string]UniformSemantic),
		TextureSemantics: make(map[string]Semantic[TextureSemantic]),
	}

	for i, p := range passes {
		for _, id := range p.Parameters {
			if existing, ok := s.UniformSemantics[id]; ok {
				// Parameters may be redeclared by later passes sharing a shader.
				if u, isUnique := existing.(Semantic[UniqueSemantic]); isUnique && u.Semantics == FloatParameter {
					continue
				}
			}
			if err := s.addUniform(id, Unique(FloatParameter)); err != nil {
				return nil, err
			}
		}
		if p.Alias == "" {
			continue
		}
		if err := s.addTexture(p.Alias, Texture(PassOutput, i)); err != nil {
			return nil, err
		}
		if err := s.addUniform(p.Alias+"Size", Texture(PassOutput, i)); err != nil {
			return nil, err
		}
		if err := s.addTexture(p.Alias+"Feedback", Texture(PassFeedback, i)); err != nil {
			return nil, err
		}
		if err := s.addUniform(p.Alias+"FeedbackSize", Texture(PassFeedback, i)); err != nil {
			return nil, err
		}
	}

	for i, name := range luts {
		if err := s.addTexture(name, Texture(User, i)); err != nil {
			return nil, err
		}
		if err := s.addUniform(name+"Size", Texture(User, i)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *ShaderSemantics) addUniform(name string, u UniformSemantic) error {
	if _, ok := parseBuiltinUniform(name); ok {
		return fmt.Errorf("%w: %q shadows a builtin uniform", ErrDuplicateSemantic, name)
	}
	if _, ok := s.UniformSemantics[name]; ok {
		return fmt.Errorf("%w: uniform %q", ErrDuplicateSemantic, name)
	}
	s.UniformSemantics[name] = u
	return nil
}

func (s *ShaderSemantics) addTexture(name string, t Semantic[TextureSemantic]) error {
	if _, ok := parseBuiltinTexture(name); ok {
		return fmt.Errorf("%w: %q shadows a builtin texture", ErrDuplicateSemantic, name)
	}
	if _, ok := s.TextureSemantics[name]; ok {
		return fmt.Errorf("%w: texture %q", ErrDuplicateSemantic, name)
	}
	s.TextureSemantics[name] = t
	return nil
}
