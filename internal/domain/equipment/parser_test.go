package equipment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
)

func TestParse(t *testing.T) {
	raw := "name,category,flowrate,pressure,temperature,site\n" +
		"P-101,Pump,10,2,300,north\n" +
		"P-102,Pump, 20.5 ,4,310,south\n" +
		"\n" +
		"V-201,Valve,5,1e0,290,north\n"

	table, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "category", "flowrate", "pressure", "temperature", "site"}, table.Columns)
	require.Len(t, table.Rows, 3)

	assert.Equal(t, entity.EquipmentRow{
		Name: "P-102", Category: "Pump", Flowrate: 20.5, Pressure: 4, Temperature: 310,
		Extra: map[string]string{"site": "south"},
	}, table.Rows[1])
	assert.Equal(t, 1.0, table.Rows[2].Pressure)
}

func TestParseStripsBOM(t *testing.T) {
	raw := "\xEF\xBB\xBFname,category,flowrate,pressure,temperature\nA,Pump,1,2,3\n"
	table, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Nil(t, table.Rows[0].Extra)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, err error)
	}{
		{
			name: "missing pressure column",
			raw:  "name,category,flowrate,temperature\nA,Pump,1,3\n",
			check: func(t *testing.T, err error) {
				var schemaErr *entity.SchemaError
				require.True(t, errors.As(err, &schemaErr))
				assert.Equal(t, []string{"pressure"}, schemaErr.Missing)
				assert.Contains(t, err.Error(), "pressure")
			},
		},
		{
			name: "column match is case sensitive",
			raw:  "Name,category,Flowrate,pressure,temperature\nA,Pump,1,2,3\n",
			check: func(t *testing.T, err error) {
				var schemaErr *entity.SchemaError
				require.True(t, errors.As(err, &schemaErr))
				assert.Equal(t, []string{"name", "flowrate"}, schemaErr.Missing)
			},
		},
		{
			name: "header only",
			raw:  "name,category,flowrate,pressure,temperature\n",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, entity.ErrEmptyInput)
			},
		},
		{
			name: "empty input",
			raw:  "",
			check: func(t *testing.T, err error) {
				var malformed *entity.MalformedInputError
				require.True(t, errors.As(err, &malformed))
				assert.Equal(t, -1, malformed.Row)
			},
		},
		{
			name: "non numeric value",
			raw:  "name,category,flowrate,pressure,temperature\nA,Pump,1,2,3\nB,Pump,1,high,3\n",
			check: func(t *testing.T, err error) {
				var malformed *entity.MalformedInputError
				require.True(t, errors.As(err, &malformed))
				assert.Equal(t, 1, malformed.Row)
				assert.Equal(t, "pressure", malformed.Column)
			},
		},
		{
			name: "ragged row",
			raw:  "name,category,flowrate,pressure,temperature\nA,Pump,1,2\n",
			check: func(t *testing.T, err error) {
				var malformed *entity.MalformedInputError
				require.True(t, errors.As(err, &malformed))
				assert.Equal(t, 0, malformed.Row)
			},
		},
		{
			name: "unterminated quote",
			raw:  "name,category,flowrate,pressure,temperature\n\"A,Pump,1,2,3\n",
			check: func(t *testing.T, err error) {
				var malformed *entity.MalformedInputError
				require.True(t, errors.As(err, &malformed))
			},
		},
		{
			name: "not a finite number",
			raw:  "name,category,flowrate,pressure,temperature\nA,Pump,NaN,2,3\n",
			check: func(t *testing.T, err error) {
				var malformed *entity.MalformedInputError
				require.True(t, errors.As(err, &malformed))
				assert.Equal(t, "flowrate", malformed.Column)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Parse([]byte(tt.raw))
			require.Error(t, err)
			assert.Nil(t, table)
			assert.True(t, entity.IsInputError(err))
			tt.check(t, err)
		})
	}
}

