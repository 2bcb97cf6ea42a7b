package prompt

import (
	"fmt"

	"github.com/zhouzirui/digital-twin/backend/internal/config"
	"github.com/zhouzirui/digital-twin/backend/internal/model/persona"
)

// FromConfig loads the persona resources named by cfg and returns the
// matching assembler. Any missing resource is an error.
func FromConfig(cfg config.PersonaConfig) (Assembler, error) {
	switch cfg.Mode {
	case config.PersonaModeStatic:
		text, err := persona.LoadPersonality(cfg.PersonalityFile)
		if err != nil {
			return nil, err
		}
		return NewStatic(text), nil
	case config.PersonaModeDynamic, "":
		res, err := persona.Load(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return NewDynamic(res), nil
	default:
		return nil, fmt.Errorf("unknown persona mode %q", cfg.Mode)
	}
}
