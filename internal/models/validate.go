package models

import "fmt"

// Validate проверяет корректность конфигурации анализа
func (c *AnalysisConfig) Validate() error {
	if c.IDSize < 0 {
		return fmt.Errorf("id_size must be non-negative, got %d", c.IDSize)
	}
	if c.PathHistory < 1 {
		return fmt.Errorf("path_history must be positive, got %d", c.PathHistory)
	}
	for _, class := range c.Classes {
		if class < 0 {
			return fmt.Errorf("class identifiers must be non-negative, got %d", class)
		}
	}
	return nil
}
