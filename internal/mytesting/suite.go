package mytesting

import (
	"context"

	"github.com/jcooky/go-din"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/habiliai/lodgechat/internal/db"
)

type Suite struct {
	suite.Suite
	context.Context

	Cancel    context.CancelFunc
	Container *din.Container
	DB        *gorm.DB
}

func (s *Suite) SetupTest() {
	s.Context, s.Cancel = context.WithCancel(context.TODO())
	s.Container = din.NewContainer(s.Context, din.EnvTest)
	s.DB = din.MustGet[*gorm.DB](s.Container, db.Key)
}

func (s *Suite) TearDownTest() {
	if s.Container != nil {
		s.Container.Close()
	}
	s.Cancel()
}
