package forecast

// Block is the run of readings for one forecast period. Blocks produced by the
// segmenter are never empty.
type Block []Value

// Result is the structured forecast extracted from one page. It is not
// modified after Extract returns it.
type Result struct {
	SnowBlocks          []Block `json:"snowBlocks"`
	TemperatureBlocks   []Block `json:"temperatureBlocks"`
	WindBlocks          []Block `json:"windBlocks"`
	FreezingLevelBlocks []Block `json:"freezingLevelBlocks"`
	RainBlocks          []Block `json:"rainBlocks"`
	PhrasesBlocks       []Block `json:"phrasesBlocks"`
	BottomElevation     *int    `json:"bottomElevation"`
	MaxSnowBlockLength  int     `json:"maxSnowBlockLength"`
}

// Blocks returns the block sequence stored for d.
func (r *Result) Blocks(d DataType) []Block {
	switch d {
	case Snow:
		return r.SnowBlocks
	case Temperature:
		return r.TemperatureBlocks
	case Wind:
		return r.WindBlocks
	case FreezingLevel:
		return r.FreezingLevelBlocks
	case Rain:
		return r.RainBlocks
	case Phrases:
		return r.PhrasesBlocks
	}
	return nil
}

func (r *Result) setBlocks(d DataType, blocks []Block) {
	switch d {
	case Snow:
		r.SnowBlocks = blocks
	case Temperature:
		r.TemperatureBlocks = blocks
	case Wind:
		r.WindBlocks = blocks
	case FreezingLevel:
		r.FreezingLevelBlocks = blocks
	case Rain:
		r.RainBlocks = blocks
	case Phrases:
		r.PhrasesBlocks = blocks
	}
}

// MaxBlockLength returns the length of the longest block, or 0 for none.
func MaxBlockLength(blocks []Block) int {
	longest := 0
	for _, b := range blocks {
		if len(b) > longest {
			longest = len(b)
		}
	}
	return longest
}
