package traversal

import (
	"fmt"
	"time"

	"github.com/nodefeed/nodefeed/client"
	"github.com/nodefeed/nodefeed/constants"
	"github.com/nodefeed/nodefeed/types"
	"github.com/nodefeed/nodefeed/utils"
)

// ComputedFieldConfig adds a raw SQL expression to the projection under a
// generated alias.
type ComputedFieldConfig struct {
	Expression string `json:"expression" validate:"required"`
	Property   string `json:"property" validate:"required"`
	Type       string `json:"type" validate:"omitempty,oneof=int date string"`
}

// Config drives one traversal manager instance.
type Config struct {
	// Dialect selects the query strategy; empty means autodetect by
	// probing the server's dual views.
	Dialect string `json:"dialect" validate:"omitempty,oneof=mssql oracle"`

	Admin *client.ConnConfig `json:"admin"`
	// Impersonated is the end-user identity for result materialization;
	// nil reuses the admin connection.
	Impersonated *client.ConnConfig `json:"impersonated"`

	// Comma-separated node id lists, as configured on the server side.
	IncludedLocationNodes string `json:"included_location_nodes"`
	ExcludedLocationNodes string `json:"excluded_location_nodes"`
	ExcludedVolumeTypes   string `json:"excluded_volume_types"`
	ExcludedNodeTypes     string `json:"excluded_node_types"`

	// ExtraWhere is an externally configured raw predicate ANDed into the
	// match query.
	ExtraWhere string `json:"extra_where"`

	// StartDate optionally seeds the first insert checkpoint
	// ("2006-01-02 15:04:05"); empty traverses from the beginning.
	StartDate string `json:"start_date"`

	TrackDeletes bool `json:"track_deletes"`
	// IndexedDeletes marks servers whose audit EventID column is indexed,
	// enabling the exact "after event" continuation.
	IndexedDeletes bool `json:"indexed_deletes"`

	// UseAncestorTable enables the precomputed DTreeAncestors closure; when
	// false, hierarchy filtering falls to the genealogist's parent walks.
	UseAncestorTable bool `json:"use_ancestor_table"`

	// FuzzDays bounds how far ahead of the checkpoint a candidate may be
	// before the time-warp check trips. Negative disables the check.
	FuzzDays int `json:"fuzz_days"`

	BatchSize         int `json:"batch_size"`
	TimeBudgetSeconds int `json:"time_budget_seconds"`

	GenealogistMinCache int `json:"genealogist_min_cache"`
	GenealogistMaxCache int `json:"genealogist_max_cache"`

	ComputedFields []ComputedFieldConfig `json:"computed_fields"`

	startDate time.Time
}

// Validate checks and normalises the traversal configuration.
func (c *Config) Validate() error {
	if c.BatchSize < 0 {
		return fmt.Errorf("batch size cannot be negative")
	}
	if c.BatchSize == 0 || c.BatchSize > constants.MaxBatchSize {
		c.BatchSize = utils.Ternary(c.BatchSize == 0, constants.DefaultBatchSize, constants.MaxBatchSize).(int)
	}
	if c.TimeBudgetSeconds <= 0 {
		c.TimeBudgetSeconds = 60
	}
	if c.GenealogistMinCache <= 0 {
		c.GenealogistMinCache = 1024
	}
	if c.GenealogistMaxCache <= c.GenealogistMinCache {
		c.GenealogistMaxCache = c.GenealogistMinCache * 8
	}

	if c.StartDate != "" {
		startDate, err := time.Parse(constants.TimestampLayout, c.StartDate)
		if err != nil {
			return fmt.Errorf("failed to parse start date %q: %s", c.StartDate, err)
		}
		c.startDate = startDate
	}

	lists := []string{c.IncludedLocationNodes, c.ExcludedLocationNodes, c.ExcludedVolumeTypes, c.ExcludedNodeTypes}
	if err := utils.ForEach(lists, func(list string) error {
		_, err := utils.SplitIDList(list)
		return err
	}); err != nil {
		return err
	}
	return utils.Validate(c)
}

// fields renders the default projection plus configured computed columns.
func (c *Config) fields() []types.Field {
	fields := append([]types.Field{}, types.DefaultFields...)
	for ordinal, computed := range c.ComputedFields {
		fieldType := types.FieldType(utils.Ternary(computed.Type == "", string(types.FieldString), computed.Type).(string))
		fields = append(fields, types.ComputedField(ordinal, computed.Expression, computed.Property, fieldType))
	}
	return fields
}
