package strategy

import (
	"sync"
	"time"

	"solana-strategy-engine/internal/indicators"
)

// RSIConfig parameterizes the RSI-based strategy.
type RSIConfig struct {
	Period     int
	Oversold   float64
	Overbought float64
	MinHoldMs  int64
}

type rsiMintState struct {
	history      []float64
	lastRSI      float64
	haveLastRSI  bool
	lastPrice    float64
	neutralSince time.Time
	inNeutral    bool
}

// RSIStrategy buys on an oversold crossover and sells on an overbought
// crossover, bearish divergence, or prolonged neutral dwell time.
type RSIStrategy struct {
	cfg RSIConfig

	mu    sync.Mutex
	state map[string]*rsiMintState
}

// NewRSIStrategy creates an RSIStrategy with cfg.
func NewRSIStrategy(cfg RSIConfig) *RSIStrategy {
	return &RSIStrategy{cfg: cfg, state: make(map[string]*rsiMintState)}
}

func (s *RSIStrategy) Name() string { return "rsi" }

func (s *RSIStrategy) OnDiscovered(meta TokenInfo, rt Runtime) {
	// Entry decisions are driven from price history on tick; discovery
	// only seeds the per-mint state.
	s.mu.Lock()
	if _, ok := s.state[meta.Mint]; !ok {
		s.state[meta.Mint] = &rsiMintState{}
	}
	s.mu.Unlock()
}

func (s *RSIStrategy) OnTick(rt Runtime) {
	maxHistory := 2 * s.cfg.Period
	for _, tok := range rt.AllTokens() {
		price, ok := rt.GetTokenUSDPrice(tok.Mint)
		if !ok {
			continue
		}

		s.mu.Lock()
		st, ok := s.state[tok.Mint]
		if !ok {
			st = &rsiMintState{}
			s.state[tok.Mint] = st
		}
		st.history = append(st.history, price)
		if len(st.history) > maxHistory {
			st.history = st.history[len(st.history)-maxHistory:]
		}
		history := append([]float64(nil), st.history...)
		prevRSI, havePrev := st.lastRSI, st.haveLastRSI
		prevPrice := st.lastPrice
		s.mu.Unlock()

		rsi, ok := indicators.RSI(history, s.cfg.Period)
		if !ok {
			continue
		}

		state, known := rt.Status(tok.Mint)

		if !known || state != StateSwapped {
			if havePrev && prevRSI >= s.cfg.Oversold && rsi < s.cfg.Oversold {
				rt.Buy(tok.Mint)
			}
		} else {
			sold := false
			if havePrev && prevRSI <= s.cfg.Overbought && rsi > s.cfg.Overbought {
				rt.Sell(tok.Mint)
				sold = true
			}
			if !sold && havePrev {
				priceUp := prevPrice > 0 && (price-prevPrice)/prevPrice > 0.01
				rsiDrop := prevRSI-rsi > 2
				if priceUp && rsiDrop {
					rt.Sell(tok.Mint)
					sold = true
				}
			}
			if !sold {
				sold = s.checkNeutralDwell(tok.Mint, rsi, rt)
			}
		}

		s.mu.Lock()
		st.lastRSI, st.haveLastRSI = rsi, true
		st.lastPrice = price
		s.mu.Unlock()
	}
}

func (s *RSIStrategy) checkNeutralDwell(mint string, rsi float64, rt Runtime) bool {
	neutral := rsi > s.cfg.Oversold && rsi < s.cfg.Overbought

	s.mu.Lock()
	st := s.state[mint]
	now := rt.Now()
	if !neutral {
		st.inNeutral = false
		s.mu.Unlock()
		return false
	}
	if !st.inNeutral {
		st.inNeutral = true
		st.neutralSince = now
		s.mu.Unlock()
		return false
	}
	elapsed := now.Sub(st.neutralSince).Milliseconds()
	s.mu.Unlock()

	if s.cfg.MinHoldMs > 0 && elapsed >= s.cfg.MinHoldMs {
		return rt.Sell(mint)
	}
	return false
}
