/*
 * OCS Configuration Factory
 */

package factory

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/asaskevich/govalidator"

	"github.com/RestComm/charging-server/internal/logger"
)

const (
	OcsExpectedConfigVersion = "1.0.1"
	OcsSbiDefaultIPv4        = "127.0.0.8"
	OcsSbiDefaultPort        = 8000
	OcsDiameterDefaultPort   = 3868
	OcsDefaultValidityTime   = 86400
	OcsDefaultCdrFileName    = "charging.cdr"
)

type Config struct {
	Info          *Info          `yaml:"info" valid:"required"`
	Configuration *Configuration `yaml:"configuration" valid:"required"`
	Logger        *Logger        `yaml:"logger" valid:"required"`

	sync.RWMutex
}

type Logger struct {
	Enable       bool   `yaml:"enable" valid:"type(bool)"`
	Level        string `yaml:"level" valid:"required,in(trace|debug|info|warn|error|fatal|panic)"`
	ReportCaller bool   `yaml:"reportCaller" valid:"type(bool)"`
}

func (l *Logger) Validate() (bool, error) {
	if _, err := govalidator.ValidateStruct(l); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

func (c *Config) Validate() (bool, error) {
	if _, err := c.Info.validate(); err != nil {
		return false, err
	}

	if _, err := c.Configuration.validate(); err != nil {
		return false, err
	}

	if _, err := c.Logger.Validate(); err != nil {
		return false, err
	}

	if _, err := govalidator.ValidateStruct(c); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

type Info struct {
	Version     string `yaml:"version,omitempty" valid:"required"`
	Description string `yaml:"description,omitempty" valid:"-"`
}

func (i *Info) validate() (bool, error) {
	if _, err := govalidator.ValidateStruct(i); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

type Configuration struct {
	OcsName      string    `yaml:"ocsName,omitempty" valid:"required, type(string)"`
	Diameter     *Diameter `yaml:"diameter" valid:"required"`
	Sbi          *Sbi      `yaml:"sbi,omitempty" valid:"required"`
	Ledger       string    `yaml:"ledger,omitempty" valid:"required, ledger"`
	Mongodb      *Mongodb  `yaml:"mongodb,omitempty" valid:"optional"`
	Bypass       bool      `yaml:"bypass,omitempty" valid:"optional"`
	UsersFile    string    `yaml:"usersFile,omitempty" valid:"optional"`
	Rating       *Rating   `yaml:"rating,omitempty" valid:"optional"`
	ValidityTime uint32    `yaml:"validityTime,omitempty" valid:"optional"`
	Cdr          *Cdr      `yaml:"cdr,omitempty" valid:"optional"`
	Cgf          *Cgf      `yaml:"cgf,omitempty" valid:"optional"`

	// AbmfAVPs maps Diameter AVP codes to service-info names copied
	// verbatim off every request for the accounting engine.
	AbmfAVPs map[uint32]string `yaml:"abmfAVPs,omitempty" valid:"optional"`
}

func (c *Configuration) validate() (bool, error) {
	govalidator.TagMap["ledger"] = govalidator.Validator(func(str string) bool {
		return str == "memory" || str == "mongodb"
	})

	if c.Diameter != nil {
		if _, err := c.Diameter.validate(); err != nil {
			return false, err
		}
	}

	if c.Sbi != nil {
		if _, err := c.Sbi.validate(); err != nil {
			return false, err
		}
	}

	if c.Ledger == "mongodb" && c.Mongodb == nil {
		return false, fmt.Errorf("ledger is mongodb but no mongodb section given")
	}

	if c.Mongodb != nil {
		if _, err := c.Mongodb.validate(); err != nil {
			return false, err
		}
	}

	if c.Rating != nil {
		if _, err := c.Rating.validate(); err != nil {
			return false, err
		}
	}

	if _, err := govalidator.ValidateStruct(c); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

type Diameter struct {
	Protocol    string `yaml:"protocol" valid:"required, protocol"`
	HostIPv4    string `yaml:"hostIPv4" valid:"required,host"`
	Port        int    `yaml:"port,omitempty" valid:"optional,port"`
	OriginHost  string `yaml:"originHost" valid:"required"`
	OriginRealm string `yaml:"originRealm" valid:"required"`
	VendorId    uint32 `yaml:"vendorId,omitempty" valid:"optional"`
	ProductName string `yaml:"productName,omitempty" valid:"optional"`
}

func (d *Diameter) validate() (bool, error) {
	govalidator.TagMap["protocol"] = govalidator.Validator(func(str string) bool {
		return str == "tcp" || str == "sctp"
	})

	if _, err := govalidator.ValidateStruct(d); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

type Sbi struct {
	Scheme       string `yaml:"scheme" valid:"required,scheme"`
	RegisterIPv4 string `yaml:"registerIPv4,omitempty" valid:"required,host"`
	BindingIPv4  string `yaml:"bindingIPv4,omitempty" valid:"required,host"`
	Port         int    `yaml:"port,omitempty" valid:"required,port"`
	Tls          *Tls   `yaml:"tls,omitempty" valid:"optional"`
}

func (s *Sbi) validate() (bool, error) {
	govalidator.TagMap["scheme"] = govalidator.Validator(func(str string) bool {
		return str == "https" || str == "http"
	})

	if tls := s.Tls; tls != nil {
		if result, err := tls.validate(); err != nil {
			return result, err
		}
	}

	if _, err := govalidator.ValidateStruct(s); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

type Tls struct {
	Pem string `yaml:"pem,omitempty" valid:"type(string),minstringlength(1),required"`
	Key string `yaml:"key,omitempty" valid:"type(string),minstringlength(1),required"`
}

func (t *Tls) validate() (bool, error) {
	result, err := govalidator.ValidateStruct(t)
	return result, err
}

type Rating struct {
	Enable bool `yaml:"enable" valid:"-"`
	// Mode is local or http.
	Mode        string             `yaml:"mode,omitempty" valid:"optional, ratingmode"`
	HttpUrl     string             `yaml:"httpUrl,omitempty" valid:"optional, url"`
	DefaultRate float64            `yaml:"defaultRate,omitempty" valid:"optional"`
	Tariffs     map[uint32]float64 `yaml:"tariffs,omitempty" valid:"-"`
}

func (r *Rating) validate() (bool, error) {
	govalidator.TagMap["ratingmode"] = govalidator.Validator(func(str string) bool {
		return str == "local" || str == "http"
	})

	if r.Enable && r.Mode == "http" && r.HttpUrl == "" {
		return false, fmt.Errorf("rating mode is http but no httpUrl given")
	}

	if _, err := govalidator.ValidateStruct(r); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

type Cdr struct {
	Enable   bool   `yaml:"enable" valid:"-"`
	Dir      string `yaml:"dir,omitempty" valid:"optional"`
	FileName string `yaml:"fileName,omitempty" valid:"optional"`
}

type Cgf struct {
	Enable       bool   `yaml:"enable" valid:"-"`
	ListenAddr   string `yaml:"listenAddr,omitempty" valid:"optional"`
	UpstreamAddr string `yaml:"upstreamAddr,omitempty" valid:"optional"`
	FtpUser      string `yaml:"ftpUser,omitempty" valid:"optional"`
	FtpPasswd    string `yaml:"ftpPasswd,omitempty" valid:"optional"`
}

type Mongodb struct {
	Name string `yaml:"name" valid:"required, type(string)"`
	Url  string `yaml:"url" valid:"required"`
}

func (m *Mongodb) validate() (bool, error) {
	pattern := `[-a-zA-Z0-9@:%._\+~#=]{1,256}\b([-a-zA-Z0-9()@:%_\+.~#?&//=]*)`
	if result := govalidator.StringMatches(m.Url, pattern); !result {
		err := fmt.Errorf("Invalid Url: %s", m.Url)
		return false, err
	}
	if _, err := govalidator.ValidateStruct(m); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

func appendInvalid(err error) error {
	var errs govalidator.Errors

	es := err.(govalidator.Errors).Errors()
	for _, e := range es {
		errs = append(errs, fmt.Errorf("Invalid %w", e))
	}

	return error(errs)
}

func (c *Config) GetVersion() string {
	c.RLock()
	defer c.RUnlock()

	if c.Info != nil && c.Info.Version != "" {
		return c.Info.Version
	}
	return ""
}

func (c *Config) GetLogEnable() bool {
	c.RLock()
	defer c.RUnlock()

	if c.Logger == nil {
		return false
	}
	return c.Logger.Enable
}

func (c *Config) GetLogLevel() string {
	c.RLock()
	defer c.RUnlock()

	if c.Logger == nil || c.Logger.Level == "" {
		return "info"
	}
	return c.Logger.Level
}

func (c *Config) GetLogReportCaller() bool {
	c.RLock()
	defer c.RUnlock()

	if c.Logger == nil {
		return false
	}
	return c.Logger.ReportCaller
}

func (c *Config) SetLogEnable(enable bool) {
	c.Lock()
	defer c.Unlock()

	if c.Logger == nil {
		logger.CfgLog.Warnf("Logger should not be nil")
		c.Logger = &Logger{
			Enable: enable,
			Level:  "info",
		}
	} else {
		c.Logger.Enable = enable
	}
}

func (c *Config) SetLogLevel(level string) {
	c.Lock()
	defer c.Unlock()

	if c.Logger == nil {
		logger.CfgLog.Warnf("Logger should not be nil")
		c.Logger = &Logger{
			Level: level,
		}
	} else {
		c.Logger.Level = level
	}
}

func (c *Config) SetLogReportCaller(reportCaller bool) {
	c.Lock()
	defer c.Unlock()

	if c.Logger == nil {
		logger.CfgLog.Warnf("Logger should not be nil")
		c.Logger = &Logger{
			Level:        "info",
			ReportCaller: reportCaller,
		}
	} else {
		c.Logger.ReportCaller = reportCaller
	}
}

func (c *Config) GetSbiScheme() string {
	c.RLock()
	defer c.RUnlock()

	if c.Configuration != nil && c.Configuration.Sbi != nil && c.Configuration.Sbi.Scheme != "" {
		return c.Configuration.Sbi.Scheme
	}
	return "http"
}

func (c *Config) GetSbiBindingAddr() string {
	c.RLock()
	defer c.RUnlock()

	return c.sbiBindingIP() + ":" + strconv.Itoa(c.sbiPort())
}

func (c *Config) sbiBindingIP() string {
	bindIP := "0.0.0.0"
	if c.Configuration == nil || c.Configuration.Sbi == nil {
		return bindIP
	}
	if c.Configuration.Sbi.BindingIPv4 != "" {
		bindIP = c.Configuration.Sbi.BindingIPv4
	}
	return bindIP
}

func (c *Config) sbiPort() int {
	if c.Configuration != nil && c.Configuration.Sbi != nil && c.Configuration.Sbi.Port != 0 {
		return c.Configuration.Sbi.Port
	}
	return OcsSbiDefaultPort
}

func (c *Config) GetCertPemPath() string {
	c.RLock()
	defer c.RUnlock()

	if c.Configuration != nil && c.Configuration.Sbi != nil && c.Configuration.Sbi.Tls != nil {
		return c.Configuration.Sbi.Tls.Pem
	}
	return ""
}

func (c *Config) GetCertKeyPath() string {
	c.RLock()
	defer c.RUnlock()

	if c.Configuration != nil && c.Configuration.Sbi != nil && c.Configuration.Sbi.Tls != nil {
		return c.Configuration.Sbi.Tls.Key
	}
	return ""
}

func (c *Config) GetValidityTime() uint32 {
	c.RLock()
	defer c.RUnlock()

	if c.Configuration != nil && c.Configuration.ValidityTime != 0 {
		return c.Configuration.ValidityTime
	}
	return OcsDefaultValidityTime
}

func (c *Config) GetDiameterPort() int {
	c.RLock()
	defer c.RUnlock()

	if c.Configuration != nil && c.Configuration.Diameter != nil && c.Configuration.Diameter.Port != 0 {
		return c.Configuration.Diameter.Port
	}
	return OcsDiameterDefaultPort
}

func (c *Config) GetCdrFileName() string {
	c.RLock()
	defer c.RUnlock()

	if c.Configuration != nil && c.Configuration.Cdr != nil && c.Configuration.Cdr.FileName != "" {
		return c.Configuration.Cdr.FileName
	}
	return OcsDefaultCdrFileName
}
