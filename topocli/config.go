package topocli

import (
	"github.com/BurntSushi/toml"
	"oss.terrastruct.com/util-go/xdefer"
	"oss.terrastruct.com/util-go/xmain"

	"oss.terrastruct.com/topo/topograph"
	"oss.terrastruct.com/topo/topolayouts/toposize"
	"oss.terrastruct.com/topo/topolayouts/topotidy"
)

// Config is the TOML file form of the tidy options. Zero values keep the
// layout defaults.
type Config struct {
	Strategy  string `toml:"strategy"`
	Direction string `toml:"direction"`
	Tier      string `toml:"tier"`

	Padding      float64 `toml:"padding"`
	NodeSpacing  float64 `toml:"node_spacing"`
	RankSpacing  float64 `toml:"rank_spacing"`
	NestedMargin float64 `toml:"nested_margin"`
	PackSpacing  float64 `toml:"pack_spacing"`
	Clearance    float64 `toml:"clearance"`
	PortSpacing  float64 `toml:"port_spacing"`

	SkipPresize      bool    `toml:"skip_presize"`
	NormalizeDevices bool    `toml:"normalize_devices"`
	IconFillPercent  float64 `toml:"icon_fill_percent"`
	Validate         bool    `toml:"validate"`
	AutoFix          bool    `toml:"auto_fix"`
}

func loadConfig(ms *xmain.State, path string) (_ *Config, err error) {
	defer xdefer.Errorf(&err, "failed to load config %s", ms.HumanPath(path))

	b, err := ms.ReadPath(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	for _, k := range md.Undecoded() {
		ms.Log.Warn.Printf("ignoring unknown config key %q", k.String())
	}
	return cfg, nil
}

// Options converts the config into tidy options.
func (c *Config) Options() (*topotidy.Options, error) {
	strategy, err := topotidy.ParseStrategy(c.Strategy)
	if err != nil {
		return nil, err
	}
	dir, err := topograph.ParseDirection(c.Direction)
	if err != nil {
		return nil, err
	}
	tier, err := toposize.ParseTier(c.Tier)
	if err != nil {
		return nil, err
	}
	return &topotidy.Options{
		Strategy:         strategy,
		Direction:        dir,
		Tier:             tier,
		Padding:          c.Padding,
		NodeSpacing:      c.NodeSpacing,
		RankSpacing:      c.RankSpacing,
		NestedMargin:     c.NestedMargin,
		PackSpacing:      c.PackSpacing,
		Clearance:        c.Clearance,
		PortSpacing:      c.PortSpacing,
		SkipPresize:      c.SkipPresize,
		NormalizeDevices: c.NormalizeDevices,
		IconFillPercent:  c.IconFillPercent,
		Validate:         c.Validate || c.AutoFix,
		AutoFix:          c.AutoFix,
	}, nil
}
